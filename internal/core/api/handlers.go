package api

// Error mapping is done inline in handlers.
// Malformed JSON and missing killmail ids map to 400.
// Reload failures map to 503 (the previous generation keeps serving).

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solatis/killwatch/internal/types"
)

type matchResponse struct {
	KillmailID int64             `json:"killmail_id"`
	Profiles   []types.ProfileID `json:"matched_profiles"`
	ElapsedMS  float64           `json:"elapsed_ms"`
}

// matchKillmail ingests one killmail event and returns the set of matched
// profile ids. Matches are persisted and alerted asynchronously by the
// engine's recorder; this response only reports the evaluation outcome.
func (s *Service) matchKillmail(c *gin.Context) {
	var ev types.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid killmail payload: " + err.Error()})
		return
	}
	if ev.KillmailID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "killmail_id required"})
		return
	}

	start := time.Now()
	matched := s.engine.Match(c.Request.Context(), &ev)

	c.JSON(http.StatusOK, matchResponse{
		KillmailID: ev.KillmailID,
		Profiles:   matched,
		ElapsedMS:  float64(time.Since(start).Microseconds()) / 1000.0,
	})
}

// reloadProfiles re-reads active profiles from the store and swaps in a fresh
// index generation. In-flight matches keep using the generation they started
// with.
func (s *Service) reloadProfiles(c *gin.Context) {
	if err := s.engine.Reload(c.Request.Context()); err != nil {
		s.logger.Error("profile reload failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reload failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.engine.Stats())
}

// stats returns the engine's administrative snapshot.
func (s *Service) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats())
}

// health reports liveness. Returns 503 until the first profile generation
// has loaded so load balancers hold traffic during startup.
func (s *Service) health(c *gin.Context) {
	st := s.engine.Stats()
	if st.GenerationSeq == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "loading",
			"error":  types.ErrEngineNotLoaded.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
