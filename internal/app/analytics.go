package app

import (
	"context"
	"log"

	"contractops/api/internal/store"
)

// ContractAnalytics summarizes one contract's review and edit activity.
// Version and presence figures are best-effort: a missing repo or mirror
// leaves them at zero rather than failing the whole report.
type ContractAnalytics struct {
	ContractID         int64
	Title              string
	Status             string
	WordCount          int
	CommentCount       int
	UnresolvedComments int
	VersionCount       int
	ActiveEditors      int
}

// Dashboard rolls up the caller's projects: contract and word counts plus
// open review comments, across everything they own.
func (s *Service) Dashboard(ctx context.Context, session Session) (store.OwnerStats, error) {
	return s.store.OwnerStats(ctx, session.UserID)
}

// ProjectAnalytics reports the contract and comment aggregates of one
// project. Only the owner may read them.
func (s *Service) ProjectAnalytics(ctx context.Context, session Session, projectID int64) (store.ProjectStats, error) {
	if _, err := s.GetProject(ctx, session, projectID); err != nil {
		return store.ProjectStats{}, err
	}
	return s.store.ProjectStats(ctx, projectID)
}

func (s *Service) ContractAnalytics(ctx context.Context, contractID int64) (ContractAnalytics, error) {
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return ContractAnalytics{}, err
	}
	comments, err := s.store.ContractCommentStats(ctx, contractID)
	if err != nil {
		return ContractAnalytics{}, err
	}

	out := ContractAnalytics{
		ContractID:         contract.ID,
		Title:              contract.Title,
		Status:             contract.Status,
		WordCount:          contract.WordCount,
		CommentCount:       comments.Total,
		UnresolvedComments: comments.Unresolved,
	}
	if s.git != nil {
		if history, err := s.git.History(contractID, 0); err == nil {
			out.VersionCount = len(history)
		}
	}
	records, err := s.ListPresence(ctx, contractID)
	if err != nil {
		log.Printf("app: presence count for contract %d: %v", contractID, err)
	} else {
		out.ActiveEditors = len(records)
	}
	return out, nil
}
