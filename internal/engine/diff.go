package engine

import (
	"sort"

	"obecsync/internal/record"
)

// Plan is the computed set of operations that converges the target onto
// the source snapshot. The four partitions are disjoint and together cover
// exactly the union of source and target ids.
type Plan struct {
	Create    []record.Record
	Update    []record.Record
	Delete    []string
	Unchanged []string
}

// Diff partitions source records against the target snapshot by id and
// content hash. Output order is deterministic: each partition sorted by id.
func Diff(source, target []record.Record) Plan {
	targetByID := make(map[string]record.Record, len(target))
	for _, rec := range target {
		targetByID[rec.ID] = rec
	}
	sourceIDs := make(map[string]struct{}, len(source))

	var plan Plan
	for _, rec := range source {
		sourceIDs[rec.ID] = struct{}{}
		existing, ok := targetByID[rec.ID]
		switch {
		case !ok:
			plan.Create = append(plan.Create, rec)
		case existing.Hash != rec.Hash:
			plan.Update = append(plan.Update, rec)
		default:
			plan.Unchanged = append(plan.Unchanged, rec.ID)
		}
	}
	for _, rec := range target {
		if _, ok := sourceIDs[rec.ID]; !ok {
			plan.Delete = append(plan.Delete, rec.ID)
		}
	}

	sort.Slice(plan.Create, func(i, j int) bool { return plan.Create[i].ID < plan.Create[j].ID })
	sort.Slice(plan.Update, func(i, j int) bool { return plan.Update[i].ID < plan.Update[j].ID })
	sort.Strings(plan.Delete)
	sort.Strings(plan.Unchanged)
	return plan
}
