package store

import (
	"context"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Tables are declared with ent's migration schema directly; there is no
// generated client, queries go through the dialect builder.
var (
	// OutcomesColumns holds the columns for the "outcomes" table.
	OutcomesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "user_id", Type: field.TypeString},
		{Name: "outcome_id", Type: field.TypeString, Unique: true},
		{Name: "session_id", Type: field.TypeString, Default: ""},
		{Name: "operation", Type: field.TypeString},
		{Name: "operand1", Type: field.TypeInt},
		{Name: "operand2", Type: field.TypeInt},
		{Name: "correct_answer", Type: field.TypeInt},
		{Name: "student_answer", Type: field.TypeInt},
		{Name: "correct", Type: field.TypeBool},
		{Name: "elapsed_ms", Type: field.TypeInt},
		{Name: "number_range", Type: field.TypeInt},
		{Name: "strategy", Type: field.TypeString},
		{Name: "error_type", Type: field.TypeString, Default: ""},
		{Name: "timestamp", Type: field.TypeInt64},
	}
	// OutcomesTable holds the schema information for the "outcomes" table.
	OutcomesTable = &schema.Table{
		Name:       "outcomes",
		Columns:    OutcomesColumns,
		PrimaryKey: []*schema.Column{OutcomesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "outcome_user_id_sequence", Columns: []*schema.Column{OutcomesColumns[2], OutcomesColumns[1]}},
		},
	}

	// StatesColumns holds the columns for the "progression_states" table.
	StatesColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString},
		{Name: "version", Type: field.TypeInt64},
		{Name: "current_level", Type: field.TypeInt},
		{Name: "data", Type: field.TypeString, Size: 1 << 20},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// StatesTable holds the schema information for the "progression_states" table.
	StatesTable = &schema.Table{
		Name:       "progression_states",
		Columns:    StatesColumns,
		PrimaryKey: []*schema.Column{StatesColumns[0]},
	}

	// SkillsColumns holds the columns for the "skills" table.
	SkillsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "skill", Type: field.TypeString},
		{Name: "level", Type: field.TypeInt},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// SkillsTable holds the schema information for the "skills" table.
	SkillsTable = &schema.Table{
		Name:       "skills",
		Columns:    SkillsColumns,
		PrimaryKey: []*schema.Column{SkillsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "skill_user_id_skill", Unique: true, Columns: []*schema.Column{SkillsColumns[1], SkillsColumns[2]}},
		},
	}

	// LevelEventsColumns holds the columns for the "level_events" table.
	LevelEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "from_level", Type: field.TypeInt},
		{Name: "to_level", Type: field.TypeInt},
		{Name: "trigger_kind", Type: field.TypeString},
		{Name: "timestamp", Type: field.TypeInt64},
	}
	// LevelEventsTable holds the schema information for the "level_events" table.
	LevelEventsTable = &schema.Table{
		Name:       "level_events",
		Columns:    LevelEventsColumns,
		PrimaryKey: []*schema.Column{LevelEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "levelevent_user_id", Columns: []*schema.Column{LevelEventsColumns[2]}},
		},
	}

	// RiskReportsColumns holds the columns for the "risk_reports" table.
	RiskReportsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "report_id", Type: field.TypeString, Unique: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "level", Type: field.TypeString},
		{Name: "confidence", Type: field.TypeFloat64},
		{Name: "data", Type: field.TypeString, Size: 1 << 20},
		{Name: "timestamp", Type: field.TypeInt64},
	}
	// RiskReportsTable holds the schema information for the "risk_reports" table.
	RiskReportsTable = &schema.Table{
		Name:       "risk_reports",
		Columns:    RiskReportsColumns,
		PrimaryKey: []*schema.Column{RiskReportsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "riskreport_user_id", Columns: []*schema.Column{RiskReportsColumns[3]}},
		},
	}

	// LlmRequestEventsColumns holds the columns for the "llm_request_events" table.
	LlmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt},
		{Name: "output_tokens", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "timestamp", Type: field.TypeInt64},
	}
	// LlmRequestEventsTable holds the schema information for the "llm_request_events" table.
	LlmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    LlmRequestEventsColumns,
		PrimaryKey: []*schema.Column{LlmRequestEventsColumns[0]},
	}

	// GlobalSequenceColumns holds the columns for the "global_sequence" table.
	GlobalSequenceColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt},
		{Name: "next_val", Type: field.TypeInt64, Default: 1},
	}
	// GlobalSequenceTable holds the single-row sequence counter.
	GlobalSequenceTable = &schema.Table{
		Name:       "global_sequence",
		Columns:    GlobalSequenceColumns,
		PrimaryKey: []*schema.Column{GlobalSequenceColumns[0]},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		OutcomesTable,
		StatesTable,
		SkillsTable,
		LevelEventsTable,
		RiskReportsTable,
		LlmRequestEventsTable,
		GlobalSequenceTable,
	}
)

func (s *Store) migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, Tables...)
}
