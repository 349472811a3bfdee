// pattern: Functional Core

package reconcile

import (
	"fmt"
	"slices"
)

// Set names one of the three result sets.
type Set string

const (
	SetOrphaned     Set = "orphaned"
	SetMismatched   Set = "mismatched"
	SetUnregistered Set = "unregistered"
)

// Sets lists the result sets in resolution order.
var Sets = []Set{SetOrphaned, SetMismatched, SetUnregistered}

// ParseSet converts a set name.
func ParseSet(s string) (Set, error) {
	set := Set(s)
	if !slices.Contains(Sets, set) {
		return "", fmt.Errorf("unknown result set %q", s)
	}
	return set, nil
}

// Choice is an answer to a Request.
type Choice string

// Bulk choices.
const (
	DeleteAll    Choice = "delete-all"
	KeepAll      Choice = "keep-all"
	RenameAll    Choice = "rename-all"
	KeepAllNames Choice = "keep-all-names"
	RegisterAll  Choice = "register-all"
	ReviewEach   Choice = "review-each"
	Skip         Choice = "skip"
)

// Per-item choices. Skip is shared with the bulk menus.
const (
	Delete            Choice = "delete"
	Keep              Choice = "keep"
	UseFilesystemName Choice = "use-filesystem-name"
	KeepDatabaseName  Choice = "keep-database-name"
	Register          Choice = "register"
)

var bulkOptions = map[Set][]Choice{
	SetOrphaned:     {DeleteAll, KeepAll, ReviewEach, Skip},
	SetMismatched:   {RenameAll, KeepAllNames, ReviewEach, Skip},
	SetUnregistered: {RegisterAll, ReviewEach, Skip},
}

var itemOptions = map[Set][]Choice{
	SetOrphaned:     {Delete, Keep},
	SetMismatched:   {UseFilesystemName, KeepDatabaseName, Skip},
	SetUnregistered: {Register, Skip},
}

var itemDefaults = map[Set]Choice{
	SetOrphaned:     Keep,
	SetMismatched:   Skip,
	SetUnregistered: Skip,
}

// BulkOptions returns the choices offered for a whole set.
func BulkOptions(set Set) []Choice {
	return slices.Clone(bulkOptions[set])
}

// ItemOptions returns the choices offered for one element of a set.
func ItemOptions(set Set) []Choice {
	return slices.Clone(itemOptions[set])
}

// Label is the human-readable text for a choice.
func (c Choice) Label() string {
	switch c {
	case DeleteAll:
		return "Delete all from registry"
	case KeepAll:
		return "Keep all"
	case RenameAll:
		return "Rename all to match the filesystem"
	case KeepAllNames:
		return "Keep all registry names"
	case RegisterAll:
		return "Register all"
	case ReviewEach:
		return "Review each"
	case Skip:
		return "Skip"
	case Delete:
		return "Delete from registry"
	case Keep:
		return "Keep"
	case UseFilesystemName:
		return "Use the directory name"
	case KeepDatabaseName:
		return "Keep the registry name"
	case Register:
		return "Register"
	default:
		return string(c)
	}
}
