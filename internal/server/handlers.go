package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/dshills/agriguard/internal/advisory"
	"github.com/dshills/agriguard/internal/cache"
	"github.com/dshills/agriguard/internal/detection"
)

// AdvisoryResponse is the body of GET /api/advisories/:label.
type AdvisoryResponse struct {
	Label    string          `json:"label"`
	Advisory advisory.Record `json:"advisory"`
	Fallback bool            `json:"fallback"`
}

// SnapshotResponse is the body of GET /api/advisories.
type SnapshotResponse struct {
	Fetcher    string                     `json:"fetcher"`
	Stats      cache.Stats                `json:"stats"`
	Advisories map[string]advisory.Record `json:"advisories"`
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ready", "fetcher": s.svc.FetcherName()})
}

func (s *Server) getAdvisory(c echo.Context) error {
	// Echo routes on RawPath when it is set and leaves params escaped.
	label := c.Param("label")
	if c.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(label); err == nil {
			label = unescaped
		}
	}

	rec, err := s.svc.Lookup(c.Request().Context(), label)
	if errors.Is(err, advisory.ErrInvalidLabel) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, AdvisoryResponse{
		Label:    label,
		Advisory: rec,
		Fallback: advisory.IsFallback(rec),
	})
}

func (s *Server) listAdvisories(c echo.Context) error {
	return c.JSON(http.StatusOK, SnapshotResponse{
		Fetcher:    s.svc.FetcherName(),
		Stats:      s.svc.Stats(),
		Advisories: s.svc.Snapshot(),
	})
}

func (s *Server) postDetections(c echo.Context) error {
	var batch detection.Batch
	if err := c.Bind(&batch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON detection batch")
	}

	report, err := detection.Resolve(c.Request().Context(), s.svc, batch, s.opts.MinConfidence)
	if errors.Is(err, detection.ErrInvalidBatch) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}

	s.latest.Store(report)
	return c.JSON(http.StatusOK, report)
}

func (s *Server) getDetections(c echo.Context) error {
	report := s.latest.Load()
	if report == nil {
		return c.JSON(http.StatusOK, detection.Poll{Detections: map[string]int{}})
	}
	return c.JSON(http.StatusOK, report.Poll())
}
