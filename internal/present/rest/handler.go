package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/atsocial/atsocial/internal/domain"
	"github.com/atsocial/atsocial/internal/present/rest/presenter"
	"github.com/atsocial/atsocial/internal/service"
	"github.com/atsocial/atsocial/internal/state"
	"github.com/atsocial/atsocial/internal/usecase"
)

type Handler struct {
	sessions *usecase.SessionUsecase
	timeline *usecase.TimelineUsecase
	groups   *usecase.GroupUsecase
	pages    *usecase.PageUsecase
	views    *state.Views
	signal   *service.SignalService
}

func NewHandler(
	sessions *usecase.SessionUsecase,
	timeline *usecase.TimelineUsecase,
	groups *usecase.GroupUsecase,
	pages *usecase.PageUsecase,
	views *state.Views,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		sessions: sessions,
		timeline: timeline,
		groups:   groups,
		pages:    pages,
		views:    views,
		signal:   signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/session", h.handleLogin)
	e.GET("/api/v1/session", h.handleSession)
	e.DELETE("/api/v1/session", h.handleLogout)

	e.GET("/api/v1/timeline", h.handleTimeline)
	e.POST("/api/v1/posts", h.handleCreatePost)
	e.POST("/api/v1/posts/like", h.handleLike)
	e.POST("/api/v1/posts/repost", h.handleRepost)
	e.POST("/api/v1/posts/reply", h.handleReply)
	e.GET("/api/v1/thread", h.handleThread)
	e.GET("/api/v1/profile", h.handleProfile)
	e.GET("/api/v1/users/search", h.handleSearchUsers)
	e.POST("/api/v1/follow", h.handleFollow)
	e.DELETE("/api/v1/follow", h.handleUnfollow)

	e.GET("/api/v1/groups", h.handleGroups)
	e.GET("/api/v1/groups/get", h.handleGroup)
	e.POST("/api/v1/groups", h.handleCreateGroup)
	e.PUT("/api/v1/groups", h.handleUpdateGroup)
	e.POST("/api/v1/groups/join", h.handleJoinGroup)
	e.POST("/api/v1/groups/admins", h.handleAddGroupAdmin)
	e.DELETE("/api/v1/groups/members", h.handleRemoveGroupMember)
	e.GET("/api/v1/groups/posts", h.handleGroupPosts)
	e.POST("/api/v1/groups/posts", h.handleCreateGroupPost)
	e.GET("/api/v1/groups/comments", h.handleGroupComments)
	e.POST("/api/v1/groups/comments", h.handleCreateGroupComment)
	e.GET("/api/v1/groups/member", h.handleIsMember)
	e.GET("/api/v1/memberships", h.handleMemberships)

	e.GET("/api/v1/pages", h.handlePages)
	e.GET("/api/v1/pages/get", h.handlePage)
	e.POST("/api/v1/pages", h.handleCreatePage)
	e.PUT("/api/v1/pages", h.handleUpdatePage)
	e.POST("/api/v1/pages/follow", h.handleFollowPage)
	e.POST("/api/v1/pages/admins", h.handleAddPageAdmin)
	e.GET("/api/v1/pages/posts", h.handlePagePosts)
	e.POST("/api/v1/pages/posts", h.handleCreatePagePost)
	e.GET("/api/v1/pages/comments", h.handlePageComments)
	e.POST("/api/v1/pages/comments", h.handleCreatePageComment)
	e.GET("/api/v1/pages/following", h.handleIsFollowingPage)
	e.GET("/api/v1/follows", h.handleFollows)

	e.GET("/realtime", h.handleRealtime)
}

// fail maps domain errors onto the HTTP surface.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return presenter.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrPermission):
		return presenter.Forbidden(c, err)
	case errors.Is(err, domain.ErrUnsupported):
		return presenter.NotImplemented(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	default:
		return presenter.InternalError(c, err)
	}
}

// --- session ---

func (h *Handler) handleLogin(c echo.Context) error {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Identifier == "" || req.Password == "" {
		return presenter.BadRequestMessage(c, "identifier and password are required")
	}

	session, err := h.sessions.Login(c.Request().Context(), req.Identifier, req.Password)
	if err != nil {
		return presenter.Unauthorized(c, err.Error())
	}
	return presenter.OK(c, session)
}

func (h *Handler) handleSession(c echo.Context) error {
	if session := h.sessions.Current(); session != nil {
		return presenter.OK(c, session)
	}

	ok, err := h.sessions.Restore(c.Request().Context())
	if err != nil {
		return presenter.InternalError(c, err)
	}
	if !ok {
		return presenter.Unauthorized(c, "no active session")
	}
	return presenter.OK(c, h.sessions.Current())
}

func (h *Handler) handleLogout(c echo.Context) error {
	if err := h.sessions.Logout(c.Request().Context()); err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// --- timeline ---

func (h *Handler) handleTimeline(c echo.Context) error {
	ctx := c.Request().Context()

	// A raw cursor bypasses the store; the caller is paging on their own.
	if h.views == nil || c.QueryParam("cursor") != "" {
		limit := 50
		if raw := c.QueryParam("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				return presenter.BadRequestMessage(c, "invalid limit")
			}
			limit = parsed
		}

		timeline, err := h.timeline.Fetch(ctx, limit, c.QueryParam("cursor"))
		if err != nil {
			return fail(c, err)
		}
		return presenter.OK(c, timeline)
	}

	store := h.views.Timeline
	if c.QueryParam("more") == "true" {
		store.LoadMore(ctx)
	} else {
		store.Refresh(ctx)
	}

	snap := store.Snapshot()
	if err := store.Err(); err != nil && snap.Data == nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{
		"loading": snap.Loading,
		"error":   snap.Err,
		"feed":    snap.Data,
		"hasMore": store.HasMore(),
	})
}

func (h *Handler) handleCreatePost(c echo.Context) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Text == "" {
		return presenter.BadRequestMessage(c, "text is required")
	}

	ref, err := h.timeline.CreatePost(c.Request().Context(), req.Text, nil)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleLike(c echo.Context) error {
	var req struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	ref, err := h.timeline.Like(c.Request().Context(), req.URI, req.CID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleRepost(c echo.Context) error {
	var req struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	ref, err := h.timeline.Repost(c.Request().Context(), req.URI, req.CID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleReply(c echo.Context) error {
	var req struct {
		Text      string `json:"text"`
		ParentURI string `json:"parentUri"`
		ParentCID string `json:"parentCid"`
		RootURI   string `json:"rootUri"`
		RootCID   string `json:"rootCid"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Text == "" || req.ParentURI == "" {
		return presenter.BadRequestMessage(c, "text and parentUri are required")
	}

	ref, err := h.timeline.Reply(c.Request().Context(), req.Text, req.ParentURI, req.ParentCID, req.RootURI, req.RootCID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleThread(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	thread, err := h.timeline.Thread(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, thread)
}

func (h *Handler) handleProfile(c echo.Context) error {
	actor := c.QueryParam("actor")
	if actor == "" {
		return presenter.BadRequestMessage(c, "actor is required")
	}

	profile, err := h.timeline.Profile(c.Request().Context(), actor)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, profile)
}

func (h *Handler) handleSearchUsers(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return presenter.BadRequestMessage(c, "q is required")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return presenter.BadRequestMessage(c, "invalid limit")
		}
		limit = parsed
	}

	users, err := h.timeline.SearchUsers(c.Request().Context(), query, limit)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, users)
}

func (h *Handler) handleFollow(c echo.Context) error {
	var req struct {
		DID string `json:"did"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.DID == "" {
		return presenter.BadRequestMessage(c, "did is required")
	}

	ref, err := h.timeline.FollowUser(c.Request().Context(), req.DID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleUnfollow(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	if err := h.timeline.UnfollowUser(c.Request().Context(), uri); err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// --- groups ---

func (h *Handler) handleGroups(c echo.Context) error {
	ctx := c.Request().Context()

	if q := c.QueryParam("q"); q != "" {
		groups, err := h.groups.Search(ctx, q)
		if err != nil {
			return fail(c, err)
		}
		return presenter.OK(c, groups)
	}

	if h.views == nil {
		groups, err := h.groups.List(ctx)
		if err != nil {
			return fail(c, err)
		}
		return presenter.OK(c, groups)
	}

	h.views.Groups.Refresh(ctx)
	snap := h.views.Groups.Snapshot()
	if err := h.views.Groups.Err(); err != nil && snap.Data == nil {
		return fail(c, err)
	}
	return presenter.OK(c, snap)
}

func (h *Handler) handleGroup(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	group, err := h.groups.Get(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, group)
}

func (h *Handler) handleCreateGroup(c echo.Context) error {
	var group domain.Group
	if err := c.Bind(&group); err != nil {
		return presenter.BadRequest(c, err)
	}
	if group.Name == "" {
		return presenter.BadRequestMessage(c, "name is required")
	}

	created, err := h.groups.Create(c.Request().Context(), group)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, created)
}

func (h *Handler) handleUpdateGroup(c echo.Context) error {
	var group domain.Group
	if err := c.Bind(&group); err != nil {
		return presenter.BadRequest(c, err)
	}
	if group.URI == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	updated, err := h.groups.Update(c.Request().Context(), group)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, updated)
}

func (h *Handler) handleJoinGroup(c echo.Context) error {
	var req struct {
		URI string `json:"uri"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.URI == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	if err := h.groups.Join(c.Request().Context(), req.URI); err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleAddGroupAdmin(c echo.Context) error {
	var req struct {
		Group domain.Group `json:"group"`
		DID   string       `json:"did"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.DID == "" {
		return presenter.BadRequestMessage(c, "did is required")
	}

	updated, err := h.groups.AddAdmin(c.Request().Context(), req.Group, req.DID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, updated)
}

func (h *Handler) handleRemoveGroupMember(c echo.Context) error {
	err := h.groups.RemoveMember(c.Request().Context(), c.QueryParam("uri"), c.QueryParam("did"))
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleGroupPosts(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	posts, err := h.groups.Posts(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, posts)
}

func (h *Handler) handleCreateGroupPost(c echo.Context) error {
	var req struct {
		URI  string `json:"uri"`
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.URI == "" || req.Text == "" {
		return presenter.BadRequestMessage(c, "uri and text are required")
	}

	ref, err := h.groups.Post(c.Request().Context(), req.URI, req.Text, nil)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleGroupComments(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	comments, err := h.groups.Comments(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, comments)
}

func (h *Handler) handleCreateGroupComment(c echo.Context) error {
	var req struct {
		PostURI   string `json:"postUri"`
		ParentURI string `json:"parentUri"`
		Text      string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.PostURI == "" || req.Text == "" {
		return presenter.BadRequestMessage(c, "postUri and text are required")
	}

	ref, err := h.groups.Comment(c.Request().Context(), req.PostURI, req.ParentURI, req.Text)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleIsMember(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	joined, err := h.groups.IsMember(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"joined": joined})
}

func (h *Handler) handleMemberships(c echo.Context) error {
	memberships, err := h.groups.Memberships(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, memberships)
}

// --- pages ---

func (h *Handler) handlePages(c echo.Context) error {
	ctx := c.Request().Context()

	if q := c.QueryParam("q"); q != "" {
		pages, err := h.pages.Search(ctx, q)
		if err != nil {
			return fail(c, err)
		}
		return presenter.OK(c, pages)
	}

	if h.views == nil {
		pages, err := h.pages.List(ctx)
		if err != nil {
			return fail(c, err)
		}
		return presenter.OK(c, pages)
	}

	h.views.Pages.Refresh(ctx)
	snap := h.views.Pages.Snapshot()
	if err := h.views.Pages.Err(); err != nil && snap.Data == nil {
		return fail(c, err)
	}
	return presenter.OK(c, snap)
}

func (h *Handler) handlePage(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	page, err := h.pages.Get(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleCreatePage(c echo.Context) error {
	var page domain.Page
	if err := c.Bind(&page); err != nil {
		return presenter.BadRequest(c, err)
	}
	if page.Name == "" {
		return presenter.BadRequestMessage(c, "name is required")
	}

	created, err := h.pages.Create(c.Request().Context(), page)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, created)
}

func (h *Handler) handleUpdatePage(c echo.Context) error {
	var page domain.Page
	if err := c.Bind(&page); err != nil {
		return presenter.BadRequest(c, err)
	}
	if page.URI == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	updated, err := h.pages.Update(c.Request().Context(), page)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, updated)
}

func (h *Handler) handleFollowPage(c echo.Context) error {
	var req struct {
		URI string `json:"uri"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.URI == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	if err := h.pages.Follow(c.Request().Context(), req.URI); err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleAddPageAdmin(c echo.Context) error {
	var req struct {
		Page domain.Page `json:"page"`
		DID  string      `json:"did"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.DID == "" {
		return presenter.BadRequestMessage(c, "did is required")
	}

	updated, err := h.pages.AddAdmin(c.Request().Context(), req.Page, req.DID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, updated)
}

func (h *Handler) handlePagePosts(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	posts, err := h.pages.Posts(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, posts)
}

func (h *Handler) handleCreatePagePost(c echo.Context) error {
	var req struct {
		Page domain.Page `json:"page"`
		Text string      `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Page.URI == "" || req.Text == "" {
		return presenter.BadRequestMessage(c, "page and text are required")
	}

	ref, err := h.pages.Post(c.Request().Context(), req.Page, req.Text, nil)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handlePageComments(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	comments, err := h.pages.Comments(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, comments)
}

func (h *Handler) handleCreatePageComment(c echo.Context) error {
	var req struct {
		PostURI   string `json:"postUri"`
		ParentURI string `json:"parentUri"`
		Text      string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.PostURI == "" || req.Text == "" {
		return presenter.BadRequestMessage(c, "postUri and text are required")
	}

	ref, err := h.pages.Comment(c.Request().Context(), req.PostURI, req.ParentURI, req.Text)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, ref)
}

func (h *Handler) handleIsFollowingPage(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return presenter.BadRequestMessage(c, "uri is required")
	}

	following, err := h.pages.IsFollowing(c.Request().Context(), uri)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"following": following})
}

func (h *Handler) handleFollows(c echo.Context) error {
	follows, err := h.pages.Follows(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, follows)
}

// --- realtime ---

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type refreshEvent struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// handleRealtime relays mutation signals to connected clients so they can
// refetch the affected surface.
func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx := c.Request().Context()

	topics := h.signal.Subscribe(ctx)
	if topics == nil {
		// No redis; hold the socket open so clients need no special casing.
		topics = make(chan string)
	}

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			// Reads only drain heartbeats and detect the close.
			if _, _, err := ws.ReadMessage(); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-quit:
			return nil
		case topic, ok := <-topics:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(refreshEvent{Type: "refresh", Topic: topic}); err != nil {
				slog.DebugContext(
					ctx, "Failed to write event",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
