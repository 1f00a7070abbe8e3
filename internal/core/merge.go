package core

import (
	"math"
	"strconv"
)

// Roles is the fallback role set recovered from a contract's deploy entry.
type Roles struct {
	Exporter  string `json:"exporter"`
	Importer  string `json:"importer"`
	Logistics string `json:"logistics"`
}

// FallbackRoles scans history for the earliest "deploy" entry and extracts
// the roles declared on its extra payload. Missing entry, missing payload,
// or missing keys all degrade to "".
func FallbackRoles(history []ActionEntry) Roles {
	for _, e := range history {
		if e.Action == ActionDeploy {
			return rolesFromExtra(e.Extra)
		}
	}
	return Roles{}
}

func rolesFromExtra(extra map[string]any) Roles {
	var r Roles
	r.Exporter, _ = extraString(extra, "exporter")
	r.Importer, _ = extraString(extra, "importer")
	r.Logistics, _ = extraString(extra, "logistics")
	return r
}

// Merge is the single fold step producing the next projection from the
// previous one and a new entry. Field precedence, highest first: the
// entry's extra payload, the entry's role hints, the previous state, then
// the deploy-time fallback. fallback is only invoked when a role is still
// unresolved after the first three tiers; pass nil to skip it.
//
// Status is unconditionally the entry's action. Stage comes from
// extra.stage when present, else the previous stage, else "1".
func Merge(prev ContractState, e ActionEntry, fallback func() Roles) ContractState {
	next := prev
	next.Exporter = pick(extraStr(e.Extra, "exporter"), e.Exporter, prev.Exporter)
	next.Importer = pick(extraStr(e.Extra, "importer"), e.Importer, prev.Importer)
	next.Insurance = pick(extraStr(e.Extra, "insurance"), e.Insurance, prev.Insurance)
	next.Inspector = pick(extraStr(e.Extra, "inspector"), e.Inspector, prev.Inspector)

	// A nil logistics slice means "not specified"; an empty one is an
	// explicit empty set and must stick (removeLogistic can drain it).
	if ls, ok := extraStrings(e.Extra, "logistics"); ok {
		next.Logistics = ls
	} else if e.Logistics != nil {
		next.Logistics = e.Logistics
	}

	if fallback != nil && (next.Exporter == "" || next.Importer == "" || next.Logistics == nil) {
		r := fallback()
		if next.Exporter == "" {
			next.Exporter = r.Exporter
		}
		if next.Importer == "" {
			next.Importer = r.Importer
		}
		if next.Logistics == nil && r.Logistics != "" {
			next.Logistics = []string{r.Logistics}
		}
	}
	if next.Logistics == nil {
		next.Logistics = []string{}
	}

	next.Status = e.Action
	if s, ok := extraString(e.Extra, "stage"); ok && s != "" {
		next.CurrentStage = s
	} else if next.CurrentStage == "" {
		next.CurrentStage = "1"
	}
	next.LastUpdated = e.Timestamp
	return next
}

// Replay folds Merge over the whole history from the zero state. The
// stored projection must always equal Replay of the stored history.
func Replay(history []ActionEntry) ContractState {
	var st ContractState
	var fb *Roles
	for _, e := range history {
		st = Merge(st, e, func() Roles {
			if fb == nil {
				return Roles{}
			}
			return *fb
		})
		if fb == nil && e.Action == ActionDeploy {
			r := rolesFromExtra(e.Extra)
			fb = &r
		}
	}
	return st
}

// Steps folds the history into the five milestone flags. Matching is
// first-hit and tolerant of the legacy snake_case approval names; unknown
// actions change nothing.
func Steps(history []ActionEntry) StepFlags {
	var f StepFlags
	for _, e := range history {
		switch e.Action {
		case ActionDeploy:
			f.Deploy = true
		case ActionDeposit:
			f.Deposit = true
		case ActionApproveImport, "approve_importer":
			f.ApproveImporter = true
		case ActionApproveExport, "approve_exporter":
			f.ApproveExporter = true
		case ActionFinalize:
			f.Finalize = true
		}
	}
	return f
}

// Participants flattens the interested-party addresses out of a state:
// exporter, importer, and every logistics member, empties dropped,
// duplicates removed, first-seen order kept.
func Participants(st ContractState) []string {
	out := make([]string, 0, 2+len(st.Logistics))
	seen := map[string]struct{}{}
	add := func(a string) {
		if a == "" {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	add(st.Exporter)
	add(st.Importer)
	for _, l := range st.Logistics {
		add(l)
	}
	return out
}

// RolesOf reports every role the user holds on the record's current state.
func RolesOf(rec ContractRecord, user string) []string {
	var roles []string
	if user == "" {
		return roles
	}
	if rec.State.Exporter == user {
		roles = append(roles, "exporter")
	}
	if rec.State.Importer == user {
		roles = append(roles, "importer")
	}
	for _, l := range rec.State.Logistics {
		if l == user {
			roles = append(roles, "logistics")
			break
		}
	}
	if rec.State.Insurance == user {
		roles = append(roles, "insurance")
	}
	if rec.State.Inspector == user {
		roles = append(roles, "inspector")
	}
	return roles
}

func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func extraStr(extra map[string]any, key string) string {
	s, _ := extraString(extra, key)
	return s
}

// extraString reads a string-ish value out of a free-form payload. Numeric
// stages arrive as JSON or BSON numbers and are normalized to their
// decimal form.
func extraString(extra map[string]any, key string) (string, bool) {
	if extra == nil {
		return "", false
	}
	v, ok := extra[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func extraStrings(extra map[string]any, key string) ([]string, bool) {
	if extra == nil {
		return nil, false
	}
	v, ok := extra[key]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out, true
	case string:
		if t == "" {
			return nil, false
		}
		return []string{t}, true
	}
	return nil, false
}
