package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradelane/contract-ledger/internal/core"
)

// casAttempts bounds the optimistic read-merge-write loop. Each retry
// re-reads the record, so a loss here means sustained contention on one
// contract address.
const casAttempts = 5

type Repo interface {
	Get(ctx context.Context, address string) (core.ContractRecord, error)
	Create(ctx context.Context, rec core.ContractRecord) error
	// Append pushes the entry and replaces the state in one document
	// update guarded by version; ErrConflict on a stale version.
	Append(ctx context.Context, address string, version int64, entry core.ActionEntry, state core.ContractState) error
	ByParticipant(ctx context.Context, user string) ([]core.ContractRecord, error)
	IdemLookup(ctx context.Context, hash string) (core.ActionEntry, bool, error)
	IdemSave(ctx context.Context, hash string, entry core.ActionEntry) error
}

// Outbox stages notifications for asynchronous delivery.
type Outbox interface {
	Enqueue(ctx context.Context, ns []core.Notification) error
}

// ChainVerifier is the external fact supplier for on-chain confirmation.
type ChainVerifier interface {
	Verify(ctx context.Context, txHash string) (core.ChainConfirmation, error)
}

type Options struct {
	Admins []string
	Outbox Outbox
	Chain  ChainVerifier
	Logger *slog.Logger
}

type Service struct {
	repo   Repo
	admins []string
	outbox Outbox
	chain  ChainVerifier
	log    *slog.Logger
}

func New(repo Repo, opt Options) *Service {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		admins: opt.Admins,
		outbox: opt.Outbox,
		chain:  opt.Chain,
		log:    opt.Logger,
	}
}

// Append validates the request, applies the membership guard, merges the
// projection and persists entry plus state in one guarded write. The
// notification fan-out is staged afterwards and can never fail the append.
func (s *Service) Append(ctx context.Context, in core.AppendAction) (core.ActionEntry, error) {
	if in.ContractAddress == "" || in.Action == "" || in.TxHash == "" || in.Account == "" {
		return core.ActionEntry{}, ErrValidation
	}

	if in.IdemHash != "" {
		prev, ok, err := s.repo.IdemLookup(ctx, in.IdemHash)
		if err != nil {
			return core.ActionEntry{}, err
		}
		if ok {
			return prev, nil
		}
	}

	entry := core.ActionEntry{
		ID:             uuid.NewString(),
		Action:         in.Action,
		TxHash:         in.TxHash,
		Account:        in.Account,
		Exporter:       in.Exporter,
		Importer:       in.Importer,
		Logistics:      in.Logistics,
		Insurance:      in.Insurance,
		Inspector:      in.Inspector,
		RequiredAmount: in.RequiredAmount,
		Extra:          in.Extra,
		Timestamp:      time.Now().UTC(),
		IdemHash:       in.IdemHash,
	}
	if in.VerifyOnChain && s.chain != nil {
		stamp, err := s.chain.Verify(ctx, in.TxHash)
		if err != nil {
			s.log.Warn("chain_verify_failed", "tx", in.TxHash, "err", err)
			stamp = core.ChainConfirmation{Verified: false, Detail: err.Error(), CheckedAt: time.Now().UTC()}
		}
		entry.OnChain = &stamp
	}

	state, err := s.appendCAS(ctx, in.ContractAddress, &entry)
	if err != nil {
		return core.ActionEntry{}, err
	}

	if in.IdemHash != "" {
		if err := s.repo.IdemSave(ctx, in.IdemHash, entry); err != nil {
			s.log.Warn("idem_save_failed", "contract", in.ContractAddress, "err", err)
		}
	}
	s.fanOut(ctx, in.ContractAddress, entry, state)
	return entry, nil
}

// appendCAS runs the read-guard-merge-write cycle until the version-guarded
// write lands or the attempt budget runs out. The entry's logistics hint is
// rewritten by the membership guard so the history stays replayable.
func (s *Service) appendCAS(ctx context.Context, address string, entry *core.ActionEntry) (core.ContractState, error) {
	for i := 0; i < casAttempts; i++ {
		rec, err := s.repo.Get(ctx, address)
		switch {
		case errors.Is(err, ErrNotFound):
			if err := s.guard(core.ContractState{}, entry); err != nil {
				return core.ContractState{}, err
			}
			st := core.Merge(core.ContractState{}, *entry, nil)
			rec = core.ContractRecord{
				ContractAddress: address,
				Version:         1,
				State:           st,
				History:         []core.ActionEntry{*entry},
			}
			if err := s.repo.Create(ctx, rec); errors.Is(err, ErrConflict) {
				continue
			} else if err != nil {
				return core.ContractState{}, fmt.Errorf("create contract %s: %w", address, err)
			}
			return st, nil
		case err != nil:
			return core.ContractState{}, fmt.Errorf("get contract %s: %w", address, err)
		}

		if err := s.guard(rec.State, entry); err != nil {
			return core.ContractState{}, err
		}
		st := core.Merge(rec.State, *entry, func() core.Roles {
			return core.FallbackRoles(rec.History)
		})
		if err := s.repo.Append(ctx, address, rec.Version, *entry, st); errors.Is(err, ErrConflict) {
			continue
		} else if err != nil {
			return core.ContractState{}, fmt.Errorf("append to contract %s: %w", address, err)
		}
		return st, nil
	}
	return core.ContractState{}, fmt.Errorf("contract %s: %w", address, ErrConflict)
}

// guard enforces the idempotent membership semantics of the logistics set.
// All other actions pass unconditionally; ordering is advisory.
func (s *Service) guard(st core.ContractState, entry *core.ActionEntry) error {
	switch entry.Action {
	case core.ActionAddLogistic, core.ActionRemoveLogistic:
	default:
		return nil
	}
	target := entry.LogisticTarget()
	if target == "" {
		return ErrValidation
	}
	cur := st.Logistics
	idx := -1
	for i, l := range cur {
		if l == target {
			idx = i
			break
		}
	}
	if entry.Action == core.ActionAddLogistic {
		if idx >= 0 {
			return errLogisticAdded(target)
		}
		next := make([]string, 0, len(cur)+1)
		next = append(next, cur...)
		next = append(next, target)
		entry.Logistics = next
		return nil
	}
	if idx < 0 {
		return errLogisticNotFound(target)
	}
	next := make([]string, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	entry.Logistics = next
	return nil
}

// fanOut stages one notification per configured admin and per participant,
// the acting account excluded, duplicates collapsed. Best effort: a
// staging failure is logged and swallowed.
func (s *Service) fanOut(ctx context.Context, address string, entry core.ActionEntry, st core.ContractState) {
	if s.outbox == nil {
		return
	}
	now := time.Now().UTC()
	seen := map[string]struct{}{entry.Account: {}}
	var ns []core.Notification
	stage := func(recipient, kind, msg string) {
		if recipient == "" {
			return
		}
		if _, ok := seen[recipient]; ok {
			return
		}
		seen[recipient] = struct{}{}
		ns = append(ns, core.Notification{
			ID:              uuid.NewString(),
			Recipient:       recipient,
			Executor:        entry.Account,
			Kind:            kind,
			Title:           "Contract " + entry.Action,
			Message:         msg,
			ContractAddress: address,
			Action:          entry.Action,
			TxHash:          entry.TxHash,
			CreatedAt:       now,
		})
	}
	msg := fmt.Sprintf("%s executed %s on contract %s", entry.Account, entry.Action, address)
	for _, a := range s.admins {
		stage(a, "admin", msg)
	}
	for _, p := range core.Participants(st) {
		stage(p, "participant", msg)
	}
	if len(ns) == 0 {
		return
	}
	if err := s.outbox.Enqueue(ctx, ns); err != nil {
		s.log.Error("notify_enqueue_failed", "contract", address, "action", entry.Action, "err", err)
	}
}

// Get returns the full ledger record for one contract address.
func (s *Service) Get(ctx context.Context, address string) (core.ContractRecord, error) {
	return s.repo.Get(ctx, address)
}

// StepStatus derives the milestone flags and last action for one contract.
func (s *Service) StepStatus(ctx context.Context, address string) (core.StepStatus, error) {
	rec, err := s.repo.Get(ctx, address)
	if err != nil {
		return core.StepStatus{}, err
	}
	out := core.StepStatus{StepStatus: core.Steps(rec.History)}
	if n := len(rec.History); n > 0 {
		last := rec.History[n-1]
		out.LastAction = &last
	}
	return out, nil
}

// ByUser returns every contract the user participates in, annotated with
// the roles held.
func (s *Service) ByUser(ctx context.Context, user string) ([]core.UserContract, error) {
	if user == "" {
		return nil, ErrValidation
	}
	recs, err := s.repo.ByParticipant(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]core.UserContract, 0, len(recs))
	for _, rec := range recs {
		roles := core.RolesOf(rec, user)
		if len(roles) == 0 {
			continue
		}
		out = append(out, core.UserContract{Contract: rec, Roles: roles})
	}
	return out, nil
}

// History returns a window of the contract's action log.
func (s *Service) History(ctx context.Context, address string, f HistoryFilter) ([]core.ActionEntry, error) {
	f.Normalize()
	rec, err := s.repo.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	n := int64(len(rec.History))
	if f.Offset >= n {
		return []core.ActionEntry{}, nil
	}
	end := f.Offset + f.Limit
	if end > n {
		end = n
	}
	return rec.History[f.Offset:end], nil
}
