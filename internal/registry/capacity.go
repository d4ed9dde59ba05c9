package registry

import "github.com/aidekernel/aide/internal/types"

// Capacity limits (§7): soft limits generate a warning, hard limits reject
// the offending primitive. These are pure threshold checks over counts the
// reducer derives from the evolving page state; the registry does not walk
// state itself.
const (
	SoftEntitiesPerPage = 200
	HardEntitiesPerPage = 500

	SoftFieldsPerEntity = 15
	HardFieldsPerEntity = 20

	SoftChildrenPerParent = 50
	HardChildrenPerParent = 150

	SoftSectionsPerPage = 4
	HardSectionsPerPage = 8

	SoftListPropLength = 20
	HardListPropLength = 50

	SoftNestingDepth = 2
	HardNestingDepth = 3
)

// CapacityCheck is the outcome of comparing a count against a (soft, hard)
// limit pair.
type CapacityCheck struct {
	Warning string
	Err     error
}

// checkLimit builds a CapacityCheck for count against (soft, hard), naming
// the resource in any warning/error message produced.
func checkLimit(resource string, count, soft, hard int) CapacityCheck {
	if count > hard {
		return CapacityCheck{Err: types.NewCodedError(types.CodeCapacityExceeded, resource, "hard limit exceeded")}
	}
	if count > soft {
		return CapacityCheck{Warning: resource + " exceeds soft limit"}
	}
	return CapacityCheck{}
}

func CheckEntitiesPerPage(count int) CapacityCheck {
	return checkLimit("entities_per_page", count, SoftEntitiesPerPage, HardEntitiesPerPage)
}

func CheckFieldsPerEntity(count int) CapacityCheck {
	return checkLimit("fields_per_entity", count, SoftFieldsPerEntity, HardFieldsPerEntity)
}

func CheckChildrenPerParent(count int) CapacityCheck {
	return checkLimit("children_per_parent", count, SoftChildrenPerParent, HardChildrenPerParent)
}

func CheckSectionsPerPage(count int) CapacityCheck {
	return checkLimit("sections_per_page", count, SoftSectionsPerPage, HardSectionsPerPage)
}

func CheckListPropLength(count int) CapacityCheck {
	return checkLimit("list_prop_length", count, SoftListPropLength, HardListPropLength)
}

func CheckNestingDepth(depth int) CapacityCheck {
	return checkLimit("nesting_depth", depth, SoftNestingDepth, HardNestingDepth)
}
