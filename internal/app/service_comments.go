package app

import (
	"context"

	"tasktrack/api/internal/rbac"
	"tasktrack/api/internal/sanitize"
	"tasktrack/api/internal/store"
)

type CommentInput struct {
	Content   Optional[string] `json:"content"`
	ProjectID Optional[int64]  `json:"projectId"`
}

func (s *Service) ListComments(_ context.Context, session Session, projectID int64) ([]store.Comment, error) {
	var comments []store.Comment
	err := s.entities.View(func(r store.Reader) error {
		project, ok := r.Project(projectID)
		if !ok {
			return notFoundError("Project")
		}
		if !rbac.Can(rbac.ResourceComment, rbac.ActionRead, session.UserID, rbac.Facts{Project: &project}) {
			return forbiddenError("Not authorized to view this project")
		}
		comments = r.CommentsByProject(projectID)
		return nil
	})
	return comments, err
}

func (s *Service) GetComment(_ context.Context, session Session, commentID int64) (store.Comment, error) {
	var comment store.Comment
	err := s.entities.View(func(r store.Reader) error {
		found, ok := r.Comment(commentID)
		if !ok {
			return notFoundError("Comment")
		}
		project, _ := r.Project(found.ProjectID)
		if !rbac.Can(rbac.ResourceComment, rbac.ActionRead, session.UserID, rbac.Facts{Project: projectFact(project), Comment: &found}) {
			return forbiddenError("Not authorized to view this comment")
		}
		comment = found
		return nil
	})
	return comment, err
}

func (s *Service) CreateComment(_ context.Context, session Session, input CommentInput) (store.Comment, error) {
	content := sanitize.Comment(input.Content.Value)
	if content == "" {
		return store.Comment{}, validationError("Comment content is required")
	}
	if !input.ProjectID.Present() || input.ProjectID.Value <= 0 {
		return store.Comment{}, validationError("Project ID is required")
	}

	var created store.Comment
	err := s.entities.Update(func(tx *store.Tx) error {
		project, ok := tx.Project(input.ProjectID.Value)
		if !ok {
			return notFoundError("Project")
		}
		if !rbac.Can(rbac.ResourceComment, rbac.ActionCreate, session.UserID, rbac.Facts{Project: &project}) {
			return forbiddenError("Not authorized to comment on this project")
		}
		now := s.timestamp()
		created = tx.InsertComment(store.Comment{
			Content:   content,
			ProjectID: project.ID,
			UserID:    session.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return nil
	})
	return created, err
}

func (s *Service) UpdateComment(_ context.Context, session Session, commentID int64, input CommentInput) (store.Comment, error) {
	content := sanitize.Comment(input.Content.Value)

	var updated store.Comment
	err := s.entities.Update(func(tx *store.Tx) error {
		comment, ok := tx.Comment(commentID)
		if !ok {
			return notFoundError("Comment")
		}
		if !rbac.Can(rbac.ResourceComment, rbac.ActionUpdate, session.UserID, rbac.Facts{Comment: &comment}) {
			return forbiddenError("Not authorized to update this comment")
		}
		if content == "" {
			return validationError("Comment content is required")
		}
		comment.Content = content
		comment.UpdatedAt = s.timestamp()
		if err := tx.PutComment(comment); err != nil {
			return err
		}
		updated = comment
		return nil
	})
	return updated, err
}

func (s *Service) DeleteComment(_ context.Context, session Session, commentID int64) (Removal, error) {
	err := s.entities.Update(func(tx *store.Tx) error {
		comment, ok := tx.Comment(commentID)
		if !ok {
			return notFoundError("Comment")
		}
		if !rbac.Can(rbac.ResourceComment, rbac.ActionDelete, session.UserID, rbac.Facts{Comment: &comment}) {
			return forbiddenError("Not authorized to delete this comment")
		}
		tx.DeleteComment(commentID)
		return nil
	})
	if err != nil {
		return Removal{}, err
	}
	return Removal{Message: "Comment removed"}, nil
}
