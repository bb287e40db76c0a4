package features

import (
	"ledger-backend/internal/feature"
	"ledger-backend/internal/store"
)

// bucket_participants is the join entity between buckets and participants.
// Its identifier is the composite (bucket_id, participant_id) pair, which the
// caller supplies on create.
var bucketParticipantsTable = &feature.Table{
	Name: "bucket_participants",
	Columns: []feature.Column{
		{Name: "bucket_id", Type: feature.TypeUUID, Required: true, References: "buckets(id)"},
		{Name: "participant_id", Type: feature.TypeUUID, Required: true,
			References: "participants(id) ON DELETE CASCADE"},
		{Name: "user_id", Type: feature.TypeUUID, Required: true, References: "users(id)"},
		{Name: "share", Type: feature.TypeDecimal, Precision: 2, Default: "0"},
		{Name: "created_at", Type: feature.TypeTimestamp, Auto: "create"},
		{Name: "updated_at", Type: feature.TypeTimestamp, Auto: "update"},
	},
}

func newBucketParticipants(st *store.Store) (*Feature, error) {
	cfg, err := feature.Configure(bucketParticipantsTable).
		SetIDs("bucket_id", "participant_id").
		SetUserID("user_id").
		PickBaseFields("bucket_id", "participant_id", "share").
		RestrictInsertFields("bucket_id", "participant_id", "share").
		RestrictUpdateFields("share").
		EnableFiltering(map[string]feature.FilterSpec{
			"bucket":      {Column: "bucket_id", Op: "eq"},
			"participant": {Column: "participant_id", Op: "eq"},
		}).
		EnablePagination().
		Build()
	if err != nil {
		return nil, err
	}

	sb := feature.NewSchemas(cfg).
		Standard().
		WithRules(feature.OpCreate,
			feature.ExpressionRule(`"share" in record && float(record.share) < 0`,
				"share must not be negative"),
		)

	return assemble("bucket_participants", st, cfg, sb, nil)
}
