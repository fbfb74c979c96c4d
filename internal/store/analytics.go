package store

import (
	"context"
	"fmt"
)

// ProjectStats aggregates the contracts and review activity of one project.
type ProjectStats struct {
	ProjectID          int64
	ContractCount      int
	TotalWordCount     int
	ContractsByStatus  map[string]int
	CommentCount       int
	UnresolvedComments int
}

// OwnerStats rolls the same aggregates up across every project an owner has.
type OwnerStats struct {
	ProjectCount       int
	ContractCount      int
	TotalWordCount     int
	CommentCount       int
	UnresolvedComments int
}

// CommentStats counts review comments on one contract.
type CommentStats struct {
	Total      int
	Unresolved int
}

func (s *PostgresStore) ProjectStats(ctx context.Context, projectID int64) (ProjectStats, error) {
	stats := ProjectStats{ProjectID: projectID, ContractsByStatus: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(word_count), 0)
		FROM contracts WHERE project_id=$1
	`, projectID).Scan(&stats.ContractCount, &stats.TotalWordCount)
	if err != nil {
		return ProjectStats{}, fmt.Errorf("project contract stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM contracts WHERE project_id=$1 GROUP BY status`, projectID)
	if err != nil {
		return ProjectStats{}, fmt.Errorf("project status breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return ProjectStats{}, fmt.Errorf("scan status breakdown: %w", err)
		}
		stats.ContractsByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return ProjectStats{}, fmt.Errorf("project status breakdown: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT c.resolved)
		FROM comments c
		JOIN contracts ct ON ct.id = c.contract_id
		WHERE ct.project_id=$1
	`, projectID).Scan(&stats.CommentCount, &stats.UnresolvedComments)
	if err != nil {
		return ProjectStats{}, fmt.Errorf("project comment stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) OwnerStats(ctx context.Context, ownerID int64) (OwnerStats, error) {
	var stats OwnerStats

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_id=$1`, ownerID).Scan(&stats.ProjectCount)
	if err != nil {
		return OwnerStats{}, fmt.Errorf("owner project stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(ct.word_count), 0)
		FROM contracts ct
		JOIN projects p ON p.id = ct.project_id
		WHERE p.owner_id=$1
	`, ownerID).Scan(&stats.ContractCount, &stats.TotalWordCount)
	if err != nil {
		return OwnerStats{}, fmt.Errorf("owner contract stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT c.resolved)
		FROM comments c
		JOIN contracts ct ON ct.id = c.contract_id
		JOIN projects p ON p.id = ct.project_id
		WHERE p.owner_id=$1
	`, ownerID).Scan(&stats.CommentCount, &stats.UnresolvedComments)
	if err != nil {
		return OwnerStats{}, fmt.Errorf("owner comment stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) ContractCommentStats(ctx context.Context, contractID int64) (CommentStats, error) {
	var stats CommentStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT resolved)
		FROM comments WHERE contract_id=$1
	`, contractID).Scan(&stats.Total, &stats.Unresolved)
	if err != nil {
		return CommentStats{}, fmt.Errorf("contract comment stats: %w", err)
	}
	return stats, nil
}
