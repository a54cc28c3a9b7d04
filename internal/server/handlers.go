package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"chartevo/internal/logging"
	"chartevo/internal/model"
)

const readLimit = 1 << 10

type apiResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type runHistory struct {
	Run         model.RunRecord         `json:"run"`
	Generations []model.GenerationStats `json:"generations"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, apiResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func (s *Server) health(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]any{
		"run_id":     s.source.RunID(),
		"generation": s.source.Generation(),
		"clients":    s.hub.Len(),
	})
}

func (s *Server) runs(c echo.Context) error {
	runs, err := s.store.ListRuns(c.Request().Context())
	if err != nil {
		s.log.Error("list runs failed", logging.Error(err))
		return respond(c, http.StatusInternalServerError, nil)
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	return respond(c, http.StatusOK, runs)
}

func (s *Server) stats(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.QueryParam("run")
	if id == "" {
		id = s.source.RunID()
	}

	run, ok, err := s.store.GetRun(ctx, id)
	if err != nil {
		s.log.Error("get run failed", logging.String("run_id", id), logging.Error(err))
		return respond(c, http.StatusInternalServerError, nil)
	}
	if !ok {
		return respond(c, http.StatusNotFound, "unknown run "+id)
	}
	history, _, err := s.store.GetGenerations(ctx, id)
	if err != nil {
		s.log.Error("get generations failed", logging.String("run_id", id), logging.Error(err))
		return respond(c, http.StatusInternalServerError, nil)
	}
	if history == nil {
		history = []model.GenerationStats{}
	}
	return respond(c, http.StatusOK, runHistory{Run: run, Generations: history})
}

// stream upgrades to a websocket that receives one message per generation.
// Inbound messages are read and discarded until the client goes away.
func (s *Server) stream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.Error(err))
		return nil
	}
	client := s.hub.Register(conn)
	if client == nil {
		return nil
	}
	defer s.hub.Unregister(client)

	conn.SetReadLimit(readLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
