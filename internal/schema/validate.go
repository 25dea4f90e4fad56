package schema

import (
	"fmt"

	"github.com/kalita-labs/truss/internal/errs"
)

// validate is pass 2 of spec §4.4: every relation target must resolve to a
// declared entity, no entity may declare more than one primary field, and
// both sides of a relation must carry one. Owner names are not rejected: an
// unresolvable owner, or one with no List relation to the entity, is only
// recorded in Registry.Warnings, per spec §9's note that owner wiring is
// advisory until pass 4 needs it.
func validate(reg *Registry) error {
	for _, ent := range reg.Entities {
		primaryCount := 0
		for _, name := range ent.FieldOrder {
			if ent.Fields[name].Primary {
				primaryCount++
			}
		}
		if primaryCount > 1 {
			return errs.New(errs.Schema, "entity %q declares more than one primary field", ent.Name)
		}

		for _, rel := range ent.Relations {
			target, ok := reg.Entity(rel.Target)
			if !ok {
				return errs.New(errs.Schema, "entity %q: relation field %q targets unknown entity %q", ent.Name, rel.FieldName, rel.Target)
			}
			if target.PrimaryField() == nil {
				return errs.New(errs.Schema, "entity %q: relation target %q has no primary field", ent.Name, rel.Target)
			}
			if ent.PrimaryField() == nil {
				return errs.New(errs.Schema, "entity %q: used in a relation but has no primary field", ent.Name)
			}
		}

		for _, owner := range ent.Owners {
			ownerDef, ok := reg.Entity(owner)
			if !ok {
				reg.Warnings = append(reg.Warnings, fmt.Sprintf("entity %q declares unknown owner %q", ent.Name, owner))
				continue
			}
			if !ownerRelatesTo(ownerDef, ent.Name) && !ownerRelatesTo(ent, owner) {
				reg.Warnings = append(reg.Warnings, fmt.Sprintf("entity %q declares owner %q with no matching List relation", ent.Name, owner))
			}
		}
	}
	return nil
}

func ownerRelatesTo(ent *EntityDef, target string) bool {
	lowerTarget := toLower(trimTrailingS(target))
	for _, rel := range ent.Relations {
		if toLower(trimTrailingS(rel.Target)) == lowerTarget {
			return true
		}
	}
	return false
}
