package core

import "time"

// Canonical action names. Action is free-form on the wire; these are the
// ones the projections know about.
const (
	ActionDeploy         = "deploy"
	ActionDeposit        = "deposit"
	ActionApproveImport  = "approveImporter"
	ActionApproveExport  = "approveExporter"
	ActionFinalize       = "finalize"
	ActionAddLogistic    = "addLogistic"
	ActionRemoveLogistic = "removeLogistic"
)

// ChainConfirmation is the stamp left by an external transaction checker.
// The ledger records the outcome; it never gates on it.
type ChainConfirmation struct {
	Verified  bool      `json:"verified"             bson:"verified"`
	Detail    string    `json:"detail,omitempty"     bson:"detail,omitempty"`
	CheckedAt time.Time `json:"checkedAt"            bson:"checkedAt"`
}

// ActionEntry is one immutable element of a contract's history. The role
// fields are per-entry hints: they override stored state when present and
// make the history self-contained for replay.
type ActionEntry struct {
	ID             string             `json:"id"                       bson:"id"`
	Action         string             `json:"action"                   bson:"action"`
	TxHash         string             `json:"txHash"                   bson:"txHash"`
	Account        string             `json:"account"                  bson:"account"`
	Exporter       string             `json:"exporter,omitempty"       bson:"exporter,omitempty"`
	Importer       string             `json:"importer,omitempty"       bson:"importer,omitempty"`
	Logistics      []string           `json:"logistics,omitempty"      bson:"logistics,omitempty"`
	Insurance      string             `json:"insurance,omitempty"      bson:"insurance,omitempty"`
	Inspector      string             `json:"inspector,omitempty"      bson:"inspector,omitempty"`
	RequiredAmount string             `json:"requiredAmount,omitempty" bson:"requiredAmount,omitempty"`
	Extra          map[string]any     `json:"extra,omitempty"          bson:"extra,omitempty"`
	Timestamp      time.Time          `json:"timestamp"                bson:"timestamp"`
	OnChain        *ChainConfirmation `json:"onChain,omitempty"        bson:"onChain,omitempty"`

	IdemHash string `json:"-" bson:"idemHash,omitempty"`
}

// LogisticTarget is the party address an addLogistic/removeLogistic entry
// operates on, carried in the extra payload.
func (e ActionEntry) LogisticTarget() string {
	s, _ := extraString(e.Extra, "logistic")
	return s
}

// ContractState is the merged projection over a contract's history. It is
// derived, never authoritative: Replay over the history must reproduce it.
type ContractState struct {
	Exporter     string    `json:"exporter"     bson:"exporter"`
	Importer     string    `json:"importer"     bson:"importer"`
	Logistics    []string  `json:"logistics"    bson:"logistics"`
	Insurance    string    `json:"insurance"    bson:"insurance"`
	Inspector    string    `json:"inspector"    bson:"inspector"`
	Status       string    `json:"status"       bson:"status"`
	CurrentStage string    `json:"currentStage" bson:"currentStage"`
	LastUpdated  time.Time `json:"lastUpdated"  bson:"lastUpdated"`
}

// ContractRecord is the per-address ledger document. Version is the
// optimistic-concurrency token bumped on every append.
type ContractRecord struct {
	ContractAddress string        `json:"contractAddress" bson:"_id"`
	Version         int64         `json:"-"               bson:"version"`
	State           ContractState `json:"state"           bson:"state"`
	History         []ActionEntry `json:"history"         bson:"history"`
}

// StepFlags are the five canonical workflow milestones.
type StepFlags struct {
	Deploy          bool `json:"deploy"          bson:"deploy"`
	Deposit         bool `json:"deposit"         bson:"deposit"`
	ApproveImporter bool `json:"approveImporter" bson:"approveImporter"`
	ApproveExporter bool `json:"approveExporter" bson:"approveExporter"`
	Finalize        bool `json:"finalize"        bson:"finalize"`
}

// StepStatus is the client-facing progress view for one contract.
type StepStatus struct {
	StepStatus StepFlags    `json:"stepStatus"`
	LastAction *ActionEntry `json:"lastAction"`
}

// AppendAction is the validated ingestion request for one workflow
// transition.
type AppendAction struct {
	ContractAddress string
	Action          string
	TxHash          string
	Account         string
	Exporter        string
	Importer        string
	Logistics       []string
	Insurance       string
	Inspector       string
	RequiredAmount  string
	Extra           map[string]any
	VerifyOnChain   bool
	IdemHash        string
}

// UserContract is one result of the contracts-by-user query: the record
// plus the roles the user holds on it.
type UserContract struct {
	Contract ContractRecord `json:"contract"`
	Roles    []string       `json:"roles"`
}

// Notification is one outbound message produced by the fan-out.
type Notification struct {
	ID              string    `json:"id"              bson:"_id"`
	Recipient       string    `json:"recipient"       bson:"recipient"`
	Executor        string    `json:"executor"        bson:"executor"`
	Kind            string    `json:"kind"            bson:"kind"`
	Title           string    `json:"title"           bson:"title"`
	Message         string    `json:"message"         bson:"message"`
	ContractAddress string    `json:"contractAddress" bson:"contractAddress"`
	Action          string    `json:"action"          bson:"action"`
	TxHash          string    `json:"txHash"          bson:"txHash"`
	CreatedAt       time.Time `json:"createdAt"       bson:"createdAt"`
}
