// Package handler exposes the publication pipeline over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sphere/internal/publication/models"
	"sphere/internal/publication/service"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/httputil"
	"sphere/pkg/requestcontext"
)

// Service is the publication pipeline as seen by HTTP.
type Service interface {
	CreatePost(ctx context.Context, cmd service.CreatePostCommand) (*service.CreateResult, error)
	CreateComment(ctx context.Context, cmd service.CreateCommentCommand) (*service.CreateResult, error)
	VerifyPost(ctx context.Context, cb models.Callback) (*service.VerifyOutcome, error)
	VerifyComment(ctx context.Context, cb models.Callback) (*service.VerifyOutcome, error)
	GetPost(ctx context.Context, postID id.PostID) (*service.PostDetails, error)
	ListFeed(ctx context.Context, limit int, before time.Time) ([]*models.Post, error)
	ListComments(ctx context.Context, postID id.PostID) ([]*models.Comment, error)
	LikePost(ctx context.Context, userID id.UserID, postID id.PostID) (*service.LikeResult, error)
	UnlikePost(ctx context.Context, userID id.UserID, postID id.PostID) (*service.LikeResult, error)
	SessionStatus(ctx context.Context, token string) (*service.SessionStatus, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the publication routes. requireAuth guards the routes that
// act on behalf of a user; verifier callbacks and reads stay public.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/posts", h.HandleListFeed)
	r.Get("/posts/{postID}", h.HandleGetPost)
	r.Get("/posts/{postID}/comments", h.HandleListComments)
	r.Get("/verifications/{token}", h.HandleSessionStatus)
	r.Post("/verify/post", h.HandleVerifyPost)
	r.Post("/verify/comment", h.HandleVerifyComment)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/posts", h.HandleCreatePost)
		r.Post("/posts/{postID}/comments", h.HandleCreateComment)
		r.Post("/posts/{postID}/like", h.HandleLike)
		r.Delete("/posts/{postID}/like", h.HandleUnlike)
	})
}

// HandleCreatePost handles POST /posts.
func (h *Handler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreatePostRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.CreatePost(ctx, service.CreatePostCommand{
		AuthorID:        userID,
		Title:           req.Title,
		Content:         req.Content,
		Disclosures:     req.DisclosedAttributes,
		Restriction:     req.Restriction(),
		VerifierOptions: req.Options(),
		Reward:          req.Reward(),
	})
	if err != nil {
		h.logFailure(ctx, "create post failed", err,
			"request_id", requestID,
			"user_id", userID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "pending post created",
		"request_id", requestID,
		"user_id", userID,
		"post_id", result.PostID,
	)
	httputil.WriteJSON(w, http.StatusCreated, toCreateResponse(result))
}

// HandleCreateComment handles POST /posts/{postID}/comments.
func (h *Handler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	postID, ok := h.postIDParam(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateCommentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.CreateComment(ctx, service.CreateCommentCommand{
		AuthorID: userID,
		PostID:   postID,
		Content:  req.Content,
	})
	if err != nil {
		h.logFailure(ctx, "create comment failed", err,
			"request_id", requestID,
			"user_id", userID,
			"post_id", postID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "pending comment created",
		"request_id", requestID,
		"user_id", userID,
		"post_id", postID,
		"comment_id", result.CommentID,
	)
	httputil.WriteJSON(w, http.StatusCreated, toCreateResponse(result))
}

// HandleVerifyPost handles the verifier callback for posts.
func (h *Handler) HandleVerifyPost(w http.ResponseWriter, r *http.Request) {
	h.handleVerify(w, r, models.KindPost, h.service.VerifyPost)
}

// HandleVerifyComment handles the verifier callback for comments.
func (h *Handler) HandleVerifyComment(w http.ResponseWriter, r *http.Request) {
	h.handleVerify(w, r, models.KindComment, h.service.VerifyComment)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request, kind models.Kind,
	verify func(context.Context, models.Callback) (*service.VerifyOutcome, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := verify(ctx, req.Callback())
	if err != nil {
		h.logFailure(ctx, "verification callback rejected", err,
			"request_id", requestID,
			"kind", kind,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification callback accepted",
		"request_id", requestID,
		"kind", kind,
		"post_id", outcome.PostID,
		"status", outcome.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, toVerifyResponse(outcome))
}

// HandleGetPost handles GET /posts/{postID}.
func (h *Handler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, ok := h.postIDParam(w, r)
	if !ok {
		return
	}

	details, err := h.service.GetPost(ctx, postID)
	if err != nil {
		h.logFailure(ctx, "get post failed", err,
			"request_id", requestcontext.RequestID(ctx),
			"post_id", postID,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := toPostResponse(details.Post)
	resp.Comments = toCommentResponses(details.Comments)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleListFeed handles GET /posts?limit=&before=.
func (h *Handler) HandleListFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "before must be an RFC 3339 timestamp"))
			return
		}
		before = t
	}

	posts, err := h.service.ListFeed(ctx, limit, before)
	if err != nil {
		h.logFailure(ctx, "list feed failed", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	resp := &FeedResponse{Posts: make([]*PostResponse, 0, len(posts))}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, toPostResponse(p))
	}
	if limit > 0 && len(posts) == limit {
		resp.NextBefore = posts[len(posts)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleListComments handles GET /posts/{postID}/comments.
func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, ok := h.postIDParam(w, r)
	if !ok {
		return
	}

	comments, err := h.service.ListComments(ctx, postID)
	if err != nil {
		h.logFailure(ctx, "list comments failed", err,
			"request_id", requestcontext.RequestID(ctx),
			"post_id", postID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCommentResponses(comments))
}

// HandleLike handles POST /posts/{postID}/like.
func (h *Handler) HandleLike(w http.ResponseWriter, r *http.Request) {
	h.handleLike(w, r, h.service.LikePost)
}

// HandleUnlike handles DELETE /posts/{postID}/like.
func (h *Handler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	h.handleLike(w, r, h.service.UnlikePost)
}

func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request,
	op func(context.Context, id.UserID, id.PostID) (*service.LikeResult, error)) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	postID, ok := h.postIDParam(w, r)
	if !ok {
		return
	}

	result, err := op(ctx, userID, postID)
	if err != nil {
		h.logFailure(ctx, "like update failed", err,
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"post_id", postID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LikeResponse{
		PostID:     result.PostID.String(),
		Liked:      result.Liked,
		LikesCount: result.LikesCount,
	})
}

// HandleSessionStatus handles GET /verifications/{token}.
func (h *Handler) HandleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	status, err := h.service.SessionStatus(ctx, token)
	if err != nil {
		h.logFailure(ctx, "session status failed", err,
			"request_id", requestcontext.RequestID(ctx),
			"token", token,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionStatusResponse(status))
}

func (h *Handler) postIDParam(w http.ResponseWriter, r *http.Request) (id.PostID, bool) {
	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid post id"))
		return id.PostID{}, false
	}
	return postID, true
}

// logFailure logs client-caused failures at warn and the rest at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, msg, args...)
		return
	}
	h.logger.ErrorContext(ctx, msg, args...)
}
