package app

import "net/http"

// respond writes payload with status, or the error if err is non-nil.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, status int, payload any, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, payload)
}

// Projects

func (s *HTTPServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects(r.Context(), sessionFrom(r.Context()))
	s.respond(w, r, http.StatusOK, projects, err)
}

func (s *HTTPServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Project")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	project, err := s.service.GetProject(r.Context(), sessionFrom(r.Context()), id)
	s.respond(w, r, http.StatusOK, project, err)
}

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body ProjectInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	project, err := s.service.CreateProject(r.Context(), sessionFrom(r.Context()), body)
	s.respond(w, r, http.StatusCreated, project, err)
}

func (s *HTTPServer) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Project")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body ProjectInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	project, err := s.service.UpdateProject(r.Context(), sessionFrom(r.Context()), id, body)
	s.respond(w, r, http.StatusOK, project, err)
}

func (s *HTTPServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Project")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	removal, err := s.service.DeleteProject(r.Context(), sessionFrom(r.Context()), id)
	s.respond(w, r, http.StatusOK, removal, err)
}

// Tasks

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectId", "Project")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tasks, err := s.service.ListTasksByProject(r.Context(), sessionFrom(r.Context()), projectID)
	s.respond(w, r, http.StatusOK, tasks, err)
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Task")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.service.GetTask(r.Context(), sessionFrom(r.Context()), id)
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body TaskInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.service.CreateTask(r.Context(), sessionFrom(r.Context()), body)
	s.respond(w, r, http.StatusCreated, task, err)
}

func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Task")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body TaskInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.service.UpdateTask(r.Context(), sessionFrom(r.Context()), id, body)
	s.respond(w, r, http.StatusOK, task, err)
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Task")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	removal, err := s.service.DeleteTask(r.Context(), sessionFrom(r.Context()), id)
	s.respond(w, r, http.StatusOK, removal, err)
}

// Comments

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectId", "Project")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	comments, err := s.service.ListComments(r.Context(), sessionFrom(r.Context()), projectID)
	s.respond(w, r, http.StatusOK, comments, err)
}

func (s *HTTPServer) handleGetComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Comment")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	comment, err := s.service.GetComment(r.Context(), sessionFrom(r.Context()), id)
	s.respond(w, r, http.StatusOK, comment, err)
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var body CommentInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	comment, err := s.service.CreateComment(r.Context(), sessionFrom(r.Context()), body)
	s.respond(w, r, http.StatusCreated, comment, err)
}

func (s *HTTPServer) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Comment")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body CommentInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	comment, err := s.service.UpdateComment(r.Context(), sessionFrom(r.Context()), id, body)
	s.respond(w, r, http.StatusOK, comment, err)
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Comment")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	removal, err := s.service.DeleteComment(r.Context(), sessionFrom(r.Context()), id)
	s.respond(w, r, http.StatusOK, removal, err)
}

// Notifications

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.service.ListNotifications(r.Context(), sessionFrom(r.Context()))
	s.respond(w, r, http.StatusOK, notifications, err)
}

func (s *HTTPServer) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.UnreadNotifications(r.Context(), sessionFrom(r.Context()))
	s.respond(w, r, http.StatusOK, count, err)
}

func (s *HTTPServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Notification")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	notification, err := s.service.MarkNotificationRead(r.Context(), sessionFrom(r.Context()), id)
	s.respond(w, r, http.StatusOK, notification, err)
}

func (s *HTTPServer) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.service.MarkAllNotificationsRead(r.Context(), sessionFrom(r.Context()))
	s.respond(w, r, http.StatusOK, notifications, err)
}
