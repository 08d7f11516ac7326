package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"workbench/internal/job"
	"workbench/internal/validate"
)

// PassCookie carries the single-use pass from verify to enqueue.
const PassCookie = "wb_pass"

type verifyRequest struct {
	Captcha string `json:"captcha"`
}

type enqueueRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	Format  string `json:"format"`
}

type jobResponse struct {
	ID          string     `json:"id"`
	Status      job.Status `json:"status"`
	URL         string     `json:"url"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
	Error       string     `json:"error,omitempty"`
	Filename    string     `json:"filename,omitempty"`
	Size        int64      `json:"size,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
}

// Options configures the API.
type Options struct {
	Verifier     Verifier
	Passes       *PassStore
	MaxURLLength int
	// RatePerMinute and RateBurst bound POST requests per client IP; zero disables.
	RatePerMinute  float64
	RateBurst      int
	AllowedOrigins []string
}

type API struct {
	jobs     *job.Manager
	verifier Verifier
	passes   *PassStore
	opts     Options
}

func NewAPI(jobs *job.Manager, opts Options) *API {
	if opts.Passes == nil {
		opts.Passes = NewPassStore(5 * time.Minute)
	}
	if opts.MaxURLLength <= 0 {
		opts.MaxURLLength = validate.DefaultMaxURLLength
	}
	return &API{jobs: jobs, verifier: opts.Verifier, passes: opts.Passes, opts: opts}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.Use(CORS(a.opts.AllowedOrigins))
	limit := RateLimit(a.opts.RatePerMinute, a.opts.RateBurst)

	api := router.Group("/api/v1")
	{
		api.POST("/captcha/verify", limit, a.VerifyCaptcha)
		api.POST("/ytdlp", limit, a.EnqueueJob)
		api.GET("/ytdlp/jobs/:id", a.GetJob)
		api.GET("/ytdlp/download/:id", a.Download)
	}
}

// VerifyCaptcha checks the token with the provider and hands out a pass
func (a *API) VerifyCaptcha(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Captcha == "" {
		log.Warn().Err(err).Msg("invalid verify request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing captcha token"})
		return
	}
	if a.verifier == nil {
		log.Error().Msg("captcha verifier is not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification unavailable"})
		return
	}
	ok, err := a.verifier.Verify(c.Request.Context(), req.Captcha, c.ClientIP())
	if err != nil {
		log.Error().Err(err).Msg("captcha verification failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "verification unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	pass := a.passes.Issue()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(PassCookie, pass, int(a.passes.ttl.Seconds()), "/api/v1", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// EnqueueJob consumes the pass and starts a download job
func (a *API) EnqueueJob(c *gin.Context) {
	pass, _ := c.Cookie(PassCookie)
	if !a.passes.Consume(pass) {
		log.Warn().Str("client_ip", c.ClientIP()).Msg("enqueue without a valid pass")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "verification required"})
		return
	}
	c.SetCookie(PassCookie, "", -1, "/api/v1", "", c.Request.TLS != nil, true)

	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid enqueue request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	videoURL, err := validate.URLInput(req.URL, a.opts.MaxURLLength)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := a.jobs.Enqueue(videoURL, req.Quality, req.Format)
	if err != nil {
		if errors.Is(err, job.ErrBusy) {
			log.Warn().Msg("rejecting job: server is at max concurrency")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server busy"})
			return
		}
		log.Warn().Err(err).Msg("failed to enqueue job")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("job_id", created.ID).Str("url", created.URL).Msg("job created")
	c.JSON(http.StatusCreated, gin.H{"job": toJobResponse(created)})
}

// GetJob returns job status
func (a *API) GetJob(c *gin.Context) {
	id := c.Param("id")
	if found, ok := a.jobs.GetJob(id); ok {
		c.JSON(http.StatusOK, gin.H{"job": toJobResponse(found)})
		return
	}
	log.Warn().Str("job_id", id).Msg("job not found on get")
	c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
}

// Download serves the fetched file once the job has completed
func (a *API) Download(c *gin.Context) {
	id := c.Param("id")
	found, ok := a.jobs.GetJob(id)
	if !ok {
		log.Warn().Str("job_id", id).Msg("job not found on download")
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if found.Status != job.StatusCompleted || found.FilePath == "" {
		log.Warn().Str("job_id", id).Str("status", string(found.Status)).Msg("file not ready to download")
		c.JSON(http.StatusConflict, gin.H{"error": "file not ready"})
		return
	}
	log.Info().Str("job_id", id).Str("size", humanize.Bytes(uint64(found.Size))).Msg("serving download")
	c.FileAttachment(found.FilePath, found.Filename)
}

func toJobResponse(j job.Job) jobResponse {
	resp := jobResponse{
		ID:        j.ID,
		Status:    j.Status,
		URL:       j.URL,
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.UTC().Format(time.RFC3339),
		Error:     j.Error,
		Filename:  j.Filename,
		Size:      j.Size,
	}
	if j.Status == job.StatusCompleted {
		resp.DownloadURL = "/api/v1/ytdlp/download/" + j.ID
	}
	return resp
}
