// Package aide is AIde's public API: the minimal surface an embedding Go
// program needs to open a page store and drive load/create/save/fork/
// publish/compact/integrity/repair directly, without going through the
// HTTP/duplex server in cmd/aide. Event application (assembly.Apply) is not
// re-exported here. Mirrors the shape of the teacher's root beads.go
// facade (thin type aliases and pass-through functions over an internal
// package), retargeted from bd's issue-tracker storage to AIde's
// page/event model.
package aide

import (
	"context"

	"github.com/aidekernel/aide/internal/assembly"
	"github.com/aidekernel/aide/internal/reducer"
	"github.com/aidekernel/aide/internal/types"
)

// Store is the persistence seam assembly operations run against.
type Store = assembly.Store

// OpenStore creates (or reuses) a SQLite-backed document store at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	return assembly.Open(ctx, path)
}

// File is a page's decoded document: snapshot, event log, blueprint, and
// rendered form, threaded through every assembly operation.
type File = assembly.AideFile

// Create returns a freshly-minted, unsaved page under the given blueprint.
func Create(pageID string, blueprint types.Blueprint) (*File, error) {
	return assembly.Create(pageID, blueprint)
}

// Load fetches and parses the stored workspace document for pageID.
func Load(ctx context.Context, store *Store, pageID string) (*File, error) {
	return assembly.Load(ctx, store, pageID)
}

// Save atomically persists file's document to the workspace store.
func Save(ctx context.Context, store *Store, file *File) error {
	return assembly.Save(ctx, store, file)
}

// Fork deep-copies a page under a freshly minted page id. The result is not
// saved; call Save to persist it.
func Fork(file *File) (*File, error) {
	return assembly.Fork(file)
}

// Publish writes a public copy of file's document, returning the assigned
// slug and URL (PublishResult).
type PublishResult = assembly.PublishResult

func Publish(ctx context.Context, store *Store, file *File, actorTier string, slugLen int) (PublishResult, error) {
	return assembly.Publish(ctx, store, file, actorTier, slugLen)
}

// Compact drops prefix events, keeping the most recent keepRecent.
func Compact(file *File, keepRecent int) (*File, error) {
	return assembly.Compact(file, keepRecent)
}

// IntegrityReport describes the outcome of CheckIntegrity.
type IntegrityReport = assembly.IntegrityReport

func CheckIntegrity(file *File) IntegrityReport {
	return assembly.CheckIntegrity(file)
}

// Repair rebuilds a page's snapshot by replaying its event log.
func Repair(file *File) (*File, error) {
	return assembly.Repair(file)
}

// NewPageID mints an opaque page identifier.
func NewPageID() string {
	return assembly.NewPageID()
}

// DefaultBlueprint is the scaffold new pages get when the caller does not
// supply one.
var DefaultBlueprint = assembly.DefaultBlueprint

// LoadBlueprintFile decodes a *.blueprint.toml scaffold file.
func LoadBlueprintFile(path string) (types.Blueprint, error) {
	return assembly.LoadBlueprintFile(path)
}

// Core domain types re-exported for embedders that want to construct events
// or inspect page state directly without importing internal packages.
type (
	PageState  = types.PageState
	Entity     = types.Entity
	Event      = types.Event
	Blueprint  = types.Blueprint
	PropValue  = types.PropValue
	Visibility = types.Visibility
	Rejection  = reducer.Rejection
)

// Visibility constants (§6.1/§6.2).
const (
	VisibilityPrivate   = types.VisibilityPrivate
	VisibilityUnlisted  = types.VisibilityUnlisted
	VisibilityPublished = types.VisibilityPublished
)

// Display constants (§3 "Entity").
const (
	DisplayText   = types.DisplayText
	DisplayImage  = types.DisplayImage
	DisplayCard   = types.DisplayCard
	DisplayTable  = types.DisplayTable
	DisplayMetric = types.DisplayMetric
)

// RootID is the always-present root entity id every page state contains.
const RootID = types.RootID
