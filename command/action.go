package command

// Scope selects which history a command targets.
type Scope int

const (
	ScopePublic Scope = iota
	ScopePrivate
)

func (s Scope) String() string {
	if s == ScopePrivate {
		return "private"
	}
	return "public"
}

// Action enumerates every operation the symbolic grammar can produce.
type Action int

const (
	ActionChat Action = iota
	ActionRegenerate
	ActionStop
	ActionCopy
	ActionRename
	ActionSetDescription
	ActionDelete
	ActionList
	ActionSetModel
	ActionSetPrompt
	ActionViewPrompt
	ActionListModels
	ActionViewAll
	ActionViewAt
	ActionExport
	ActionEditAt
	ActionDeleteAt
	ActionClearHistory
	ActionClearAllPublic
	ActionClearEverything
	ActionHelp
	ActionDescribeAll
)

// Command is one fully parsed symbolic command.
type Command struct {
	Persona string
	Action  Action
	Scope   Scope
	Args    string
	Indices []int

	// Mode prefixes. PrivateReply is the global `&` flag; Scope already
	// folds in any local `&` marker in front of a history operator.
	PrivateReply bool
	TextMode     bool
}

// CreateSpec is the side-channel result of the `##` create/update grammar.
type CreateSpec struct {
	Name        string
	Description string
	Model       string
	Prompt      string
}
