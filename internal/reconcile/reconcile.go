package reconcile

import (
	"fmt"
	"log/slog"

	"github.com/storedsafe/ldapsync/internal/audit"
	"github.com/storedsafe/ldapsync/internal/config"
	"github.com/storedsafe/ldapsync/internal/directory"
	"github.com/storedsafe/ldapsync/internal/storedsafe"
)

// TargetAPI is what the pipeline needs from StoredSafe: the user listing
// and the status write. *storedsafe.Client satisfies it.
type TargetAPI interface {
	ListUsers() ([]storedsafe.User, error)
	EditUserStatus(id string, status int) error
}

// Pipeline wires one full reconciliation run. All collaborators are
// injected so every stage is testable without a directory server or a
// StoredSafe instance.
type Pipeline struct {
	Searcher directory.Searcher
	Target   TargetAPI
	Config   *config.Config
	Logger   *slog.Logger
	Audit    *audit.Recorder // nil disables audit recording
	DryRun   bool
}

// Result summarizes a completed run.
type Result struct {
	DirectoryUsers int
	ActiveTargets  int
	Matched        []storedsafe.User
	Changes        []StatusChange
}

// Run executes the pipeline: fetch and normalize directory users, fetch
// active StoredSafe users, convert if configured, match, and deactivate
// unless in dry-run mode. Any stage error aborts the run.
func (p *Pipeline) Run() (*Result, error) {
	dirUsers, err := directory.FetchUsers(p.Searcher, p.Config.LDAP.Search, p.Logger)
	if err != nil {
		return nil, err
	}

	allTargets, err := p.Target.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list StoredSafe users: %w", err)
	}
	targets := storedsafe.FilterActive(allTargets)
	p.Logger.Info("fetched StoredSafe users", "total", len(allTargets), "active", len(targets))

	var matched []storedsafe.User
	if p.Config.Converted() {
		converted := Convert(dirUsers, p.Config.Convert)
		matched = MatchConverted(converted, targets, p.Config.Match.Keys)
	} else {
		matched = MatchDirect(dirUsers, targets, p.Config.Match.Pairs)
	}
	p.Logger.Info("matched users for deactivation", "count", len(matched))
	for _, user := range matched {
		p.Logger.Debug("user should be deactivated", "username", user.Username, "id", user.ID)
	}

	result := &Result{
		DirectoryUsers: len(dirUsers),
		ActiveTargets:  len(targets),
		Matched:        matched,
	}

	runID := ""
	if p.Audit != nil {
		if runID, err = p.Audit.BeginRun(p.DryRun); err != nil {
			return nil, err
		}
		for _, user := range matched {
			if err := p.Audit.RecordMatch(runID, user.ID, user.Username, user.Status); err != nil {
				return nil, err
			}
		}
	}

	if p.DryRun {
		p.Logger.Info("dry run, skipping deactivation")
		return result, p.finishAudit(runID, result)
	}

	changes, deactivateErr := Deactivate(p.Target, matched, p.Logger)
	result.Changes = changes
	if p.Audit != nil {
		for _, change := range changes {
			if err := p.Audit.RecordDeactivation(runID, change.UserID, change.Username, change.OldStatus, change.NewStatus); err != nil {
				return result, err
			}
		}
	}
	if deactivateErr != nil {
		return result, deactivateErr
	}
	return result, p.finishAudit(runID, result)
}

func (p *Pipeline) finishAudit(runID string, result *Result) error {
	if p.Audit == nil {
		return nil
	}
	return p.Audit.FinishRun(runID, result.DirectoryUsers, result.ActiveTargets, len(result.Matched))
}
