package decisionhttp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"informer/internal/artifact"
	"informer/internal/store"
	"informer/internal/store/model"
	"informer/internal/store/tradelock"
	"informer/internal/types"

	"github.com/gin-gonic/gin"
)

type RunReader interface {
	FindByRunID(ctx context.Context, runID string) (*model.RunModel, error)
	List(ctx context.Context, q store.RunQuery) ([]model.RunModel, error)
}

type ArtifactReader interface {
	Read(runID string) (types.RunRecord, error)
}

type LockReader interface {
	Holder(ctx context.Context, tradeDateNY string) (tradelock.Holder, bool, error)
}

// RunSummary is one row of /api/runs.
type RunSummary struct {
	RunID        string `json:"run_id"`
	AsOf         int64  `json:"as_of"`
	TradeDateNY  string `json:"trade_date_ny"`
	Profile      string `json:"profile,omitempty"`
	Action       string `json:"action"`
	Reason       string `json:"reason"`
	Symbol       string `json:"symbol,omitempty"`
	Shares       int64  `json:"shares"`
	ArtifactPath string `json:"artifact_path,omitempty"`
}

type Router struct {
	runs      RunReader
	artifacts ArtifactReader
	locks     LockReader
}

func NewRouter(runs RunReader, artifacts ArtifactReader, locks LockReader) *Router {
	return &Router{runs: runs, artifacts: artifacts, locks: locks}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/decisions/:run_id", r.handleDecision)
	group.GET("/runs", r.handleRuns)
	group.GET("/trade-lock/:date", r.handleTradeLock)
}

// handleDecision serves the artifact, falling back to the run log copy.
func (r *Router) handleDecision(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("run_id"))
	if r.artifacts != nil {
		rec, err := r.artifacts.Read(runID)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, rec)
			return
		case errors.Is(err, artifact.ErrInvalidRunID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case !errors.Is(err, os.ErrNotExist):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if r.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
		return
	}
	row, err := r.runs.FindByRunID(c.Request.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rec, err := store.DecodeRun(row)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleRuns(c *gin.Context) {
	if r.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run log disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	rows, err := r.runs.List(c.Request.Context(), store.RunQuery{
		TradeDateNY: c.Query("date"),
		Action:      c.Query("action"),
		Symbol:      c.Query("symbol"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, RunSummary{
			RunID:        row.RunID,
			AsOf:         row.AsOfUnix,
			TradeDateNY:  row.TradeDateNY,
			Profile:      row.Profile,
			Action:       row.Action,
			Reason:       row.Reason,
			Symbol:       row.Symbol,
			Shares:       row.Shares,
			ArtifactPath: row.ArtifactPath,
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": out, "limit": limit, "offset": offset})
}

func (r *Router) handleTradeLock(c *gin.Context) {
	if r.locks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade lock disabled"})
		return
	}
	date := c.Param("date")
	h, found, err := r.locks.Holder(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"trade_date_ny": date, "locked": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade_date_ny": date, "locked": true, "holder": h})
}
