package api

import (
	"net/http"
	"strconv"

	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/auth"
	"github.com/kidandcat/teamboard/internal/board"
)

// Teams

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.board.ListTeams(r.Context(), auth.CurrentUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(teams))
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req board.TeamInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	team, err := s.board.CreateTeam(r.Context(), auth.CurrentUser(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	team, err := s.board.GetTeam(r.Context(), auth.CurrentUser(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req board.TeamInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	team, err := s.board.UpdateTeam(r.Context(), auth.CurrentUser(r), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.board.DeleteTeam(r.Context(), auth.CurrentUser(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Projects

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.board.ListProjects(r.Context(), auth.CurrentUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(projects))
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req board.ProjectInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.board.CreateProject(r.Context(), auth.CurrentUser(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.board.GetProject(r.Context(), auth.CurrentUser(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req board.ProjectInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.board.UpdateProject(r.Context(), auth.CurrentUser(r), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.board.DeleteProject(r.Context(), auth.CurrentUser(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tasks

func taskQuery(r *http.Request) (board.TaskQuery, error) {
	q := r.URL.Query()
	out := board.TaskQuery{
		Status:       q.Get("status"),
		AssignedToMe: q.Get("assigned_to") == "me",
	}
	if raw := q.Get("project"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return out, apperr.Validation("project", "A valid integer is required.")
		}
		out.Project = id
	}
	return out, nil
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q, err := taskQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tasks, err := s.board.ListTasks(r.Context(), auth.CurrentUser(r), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(tasks))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req board.TaskInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	k, err := s.board.CreateTask(r.Context(), auth.CurrentUser(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	k, err := s.board.GetTask(r.Context(), auth.CurrentUser(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req board.TaskInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	k, err := s.board.UpdateTask(r.Context(), auth.CurrentUser(r), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.board.DeleteTask(r.Context(), auth.CurrentUser(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Comments

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "task_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	comments, err := s.board.ListComments(r.Context(), auth.CurrentUser(r), taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrEmpty(comments))
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "task_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req board.CommentInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.board.CreateComment(r.Context(), auth.CurrentUser(r), taskID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// commentIDs parses the task and comment ids of a nested comment route.
func commentIDs(r *http.Request) (int64, int64, error) {
	taskID, err := pathID(r, "task_id")
	if err != nil {
		return 0, 0, err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	return taskID, id, nil
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	taskID, id, err := commentIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.board.GetComment(r.Context(), auth.CurrentUser(r), taskID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	taskID, id, err := commentIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req board.CommentInput
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.board.UpdateComment(r.Context(), auth.CurrentUser(r), taskID, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	taskID, id, err := commentIDs(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.board.DeleteComment(r.Context(), auth.CurrentUser(r), taskID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
