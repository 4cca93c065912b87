package advisor

// Code is the error code for advisor.
type Code int

// Application error codes for advisor.
const (
	// 1 ~ 99 general advisor error.
	RuleEvaluationFailure Code = 2
	StatementSyntaxError  Code = 4

	// 101 ~ 199 compatibility error.
	CompatibilityRenameTable  Code = 102
	CompatibilityDropTable    Code = 103
	CompatibilityRenameColumn Code = 104
	CompatibilityDropColumn   Code = 105
	CompatibilityAlterColumn  Code = 111
	CompatibilityDropNotNull  Code = 113

	// 301 ~ 399 column error.
	AddingRequiredField Code = 306
	AddingNotNullField  Code = 307

	// 401 ~ 499 index error.
	CreateIndexUnconcurrently Code = 410
	DropIndexUnconcurrently   Code = 411
)

// Int32 returns the code as carried by a diagnostic.
func (c Code) Int32() int32 {
	return int32(c)
}
