package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/config"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/metrics"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/router/middleware"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type controller interface {
	CreateNewUser(ctx context.Context, request *types.UserRequest) (*types.User, error)
	AuthorizeUser(ctx context.Context, request *types.UserRequest) (string, error)
	GetUser(ctx context.Context, userID string) (*types.User, error)
	TokenTTL() time.Duration

	CreateGoal(ctx context.Context, request *types.CreateGoalRequest, ownerID string) (*types.Goal, error)
	ListGoals(ctx context.Context, ownerID string) (*types.GoalList, error)
	CompleteGoal(ctx context.Context, goalID, callerID string) (*types.CompletionReceipt, error)

	CreateGroup(ctx context.Context, request *types.CreateGroupRequest, creatorID string) (*types.Group, error)
	GetUserGroups(ctx context.Context, userID string) ([]*types.Group, error)
	GetGroupDetails(ctx context.Context, groupID, userID string) (*types.Group, error)
	AddMember(ctx context.Context, request *types.MemberRequest, requesterID string) (*types.Group, error)
	RemoveMember(ctx context.Context, request *types.MemberRequest, requesterID string) (*types.Group, error)

	CreateItem(ctx context.Context, request *types.CreateItemRequest, userID string) (*types.MarketplaceItem, error)
	ListItems(ctx context.Context, category types.ItemCategory) ([]*types.MarketplaceItem, error)
	GetItem(ctx context.Context, itemID string) (*types.MarketplaceItem, error)
	UpdateItem(ctx context.Context, itemID string, request *types.UpdateItemRequest, userID string) (*types.MarketplaceItem, error)

	Close() error
}

type HttpRouter struct {
	controller controller
	*fiber.App
	appLogger      *zap.Logger
	httpPort       string
	requestTimeout time.Duration
	cookieName     string
	secureCookie   bool
}

const shutdownTimeout = 10 * time.Second

func (r *HttpRouter) Run() error {
	return r.App.Listen(":" + r.httpPort)
}

// Close stops accepting requests, waits for in-flight ones and releases the storage.
func (r *HttpRouter) Close() error {
	shutdownErr := r.App.ShutdownWithTimeout(shutdownTimeout)
	if err := r.controller.Close(); err != nil {
		r.appLogger.Error("controller.Close failed", zap.Error(err))
	}
	return shutdownErr
}

// requestContext bounds a use case by the configured request timeout.
func (r *HttpRouter) requestContext(ctx *fiber.Ctx) (context.Context, context.CancelFunc) {
	if r.requestTimeout <= 0 {
		return context.WithCancel(ctx.UserContext())
	}
	return context.WithTimeout(ctx.UserContext(), r.requestTimeout)
}

func respond(ctx *fiber.Ctx, status int, message string, data any) error {
	ctx.Status(status)
	return ctx.JSON(types.Response{Success: true, Message: message, Data: data})
}

func (r *HttpRouter) Health(ctx *fiber.Ctx) error {
	return respond(ctx, http.StatusOK, "ok", nil)
}

func (r *HttpRouter) Register(ctx *fiber.Ctx) error {
	request := &types.UserRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	c, cancel := r.requestContext(ctx)
	defer cancel()

	user, err := r.controller.CreateNewUser(c, request)
	if err != nil {
		return r.fail(ctx, "controller.CreateNewUser", err)
	}
	return respond(ctx, http.StatusCreated, "user registered successfully", user)
}

func (r *HttpRouter) Login(ctx *fiber.Ctx) error {
	request := &types.UserRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	if request.Email == "" || request.Password == "" {
		return badRequest(ctx, "email and password are required")
	}
	c, cancel := r.requestContext(ctx)
	defer cancel()

	token, err := r.controller.AuthorizeUser(c, request)
	if err != nil {
		return r.fail(ctx, "controller.AuthorizeUser", err)
	}
	ctx.Cookie(&fiber.Cookie{
		Name:     r.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(r.controller.TokenTTL()),
		HTTPOnly: true,
		Secure:   r.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(ctx, http.StatusOK, "login successful", fiber.Map{"token": token})
}

func (r *HttpRouter) Logout(ctx *fiber.Ctx) error {
	ctx.Cookie(&fiber.Cookie{
		Name:     r.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   r.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(ctx, http.StatusOK, "logged out successfully", nil)
}

func (r *HttpRouter) Me(ctx *fiber.Ctx) error {
	c, cancel := r.requestContext(ctx)
	defer cancel()

	user, err := r.controller.GetUser(c, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.GetUser", err)
	}
	return respond(ctx, http.StatusOK, "user retrieved successfully", user)
}

func (r *HttpRouter) CreateGoal(ctx *fiber.Ctx) error {
	request := &types.CreateGoalRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	c, cancel := r.requestContext(ctx)
	defer cancel()

	goal, err := r.controller.CreateGoal(c, request, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.CreateGoal", err)
	}
	return respond(ctx, http.StatusCreated, "goal created successfully", goal)
}

func (r *HttpRouter) ListGoals(ctx *fiber.Ctx) error {
	c, cancel := r.requestContext(ctx)
	defer cancel()

	list, err := r.controller.ListGoals(c, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.ListGoals", err)
	}
	return respond(ctx, http.StatusOK, "goals retrieved successfully", list)
}

func (r *HttpRouter) CompleteGoal(ctx *fiber.Ctx) error {
	c, cancel := r.requestContext(ctx)
	defer cancel()

	receipt, err := r.controller.CompleteGoal(c, ctx.Params("goalId"), middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.CompleteGoal", err)
	}
	r.appLogger.Info("goal completed",
		zap.String("goal_id", receipt.Goal.ID),
		zap.String("user_id", receipt.Goal.UserID),
		zap.Int("balance", receipt.Balance),
	)
	message := fmt.Sprintf("goal completed, %d tokens earned", receipt.TokensAwarded)
	return respond(ctx, http.StatusOK, message, receipt)
}

func (r *HttpRouter) CreateGroup(ctx *fiber.Ctx) error {
	request := &types.CreateGroupRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	c, cancel := r.requestContext(ctx)
	defer cancel()

	group, err := r.controller.CreateGroup(c, request, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.CreateGroup", err)
	}
	return respond(ctx, http.StatusCreated, "group created successfully", group)
}

func (r *HttpRouter) GetUserGroups(ctx *fiber.Ctx) error {
	c, cancel := r.requestContext(ctx)
	defer cancel()

	groups, err := r.controller.GetUserGroups(c, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.GetUserGroups", err)
	}
	return respond(ctx, http.StatusOK, "groups retrieved successfully", groups)
}

func (r *HttpRouter) GetGroupDetails(ctx *fiber.Ctx) error {
	c, cancel := r.requestContext(ctx)
	defer cancel()

	group, err := r.controller.GetGroupDetails(c, ctx.Params("groupId"), middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.GetGroupDetails", err)
	}
	return respond(ctx, http.StatusOK, "group retrieved successfully", group)
}

func (r *HttpRouter) AddMember(ctx *fiber.Ctx) error {
	request := &types.MemberRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	c, cancel := r.requestContext(ctx)
	defer cancel()

	group, err := r.controller.AddMember(c, request, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.AddMember", err)
	}
	return respond(ctx, http.StatusOK, "member added successfully", group)
}

func (r *HttpRouter) RemoveMember(ctx *fiber.Ctx) error {
	request := &types.MemberRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	return r.removeMember(ctx, request)
}

func (r *HttpRouter) DeleteMember(ctx *fiber.Ctx) error {
	return r.removeMember(ctx, &types.MemberRequest{
		GroupID: ctx.Params("groupId"),
		UserID:  ctx.Params("userId"),
	})
}

func (r *HttpRouter) removeMember(ctx *fiber.Ctx, request *types.MemberRequest) error {
	c, cancel := r.requestContext(ctx)
	defer cancel()

	group, err := r.controller.RemoveMember(c, request, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.RemoveMember", err)
	}
	return respond(ctx, http.StatusOK, "member removed successfully", group)
}

func (r *HttpRouter) CreateItem(ctx *fiber.Ctx) error {
	request := &types.CreateItemRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	c, cancel := r.requestContext(ctx)
	defer cancel()

	item, err := r.controller.CreateItem(c, request, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.CreateItem", err)
	}
	return respond(ctx, http.StatusCreated, "marketplace item created successfully", item)
}

func (r *HttpRouter) GetItems(ctx *fiber.Ctx) error {
	c, cancel := r.requestContext(ctx)
	defer cancel()

	items, err := r.controller.ListItems(c, types.ItemCategory(ctx.Query("category")))
	if err != nil {
		return r.fail(ctx, "controller.ListItems", err)
	}
	return respond(ctx, http.StatusOK, "marketplace items retrieved successfully", items)
}

func (r *HttpRouter) GetItem(ctx *fiber.Ctx) error {
	c, cancel := r.requestContext(ctx)
	defer cancel()

	item, err := r.controller.GetItem(c, ctx.Params("itemId"))
	if err != nil {
		return r.fail(ctx, "controller.GetItem", err)
	}
	return respond(ctx, http.StatusOK, "marketplace item retrieved successfully", item)
}

func (r *HttpRouter) UpdateItem(ctx *fiber.Ctx) error {
	request := &types.UpdateItemRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return badRequest(ctx, "malformed request body")
	}
	c, cancel := r.requestContext(ctx)
	defer cancel()

	item, err := r.controller.UpdateItem(c, ctx.Params("itemId"), request, middleware.UserID(ctx))
	if err != nil {
		return r.fail(ctx, "controller.UpdateItem", err)
	}
	return respond(ctx, http.StatusOK, "marketplace item updated successfully", item)
}

func CreateRouter(c controller, cfg *config.Config, logger *zap.Logger) *HttpRouter {
	appLogger := logger.Named("http")
	r := &HttpRouter{
		controller:     c,
		appLogger:      appLogger,
		httpPort:       cfg.HTTP.Port,
		requestTimeout: cfg.HTTP.RequestTimeout,
		cookieName:     cfg.Auth.CookieName,
		secureCookie:   cfg.Env != "local",
	}
	app := fiber.New(fiber.Config{
		AppName:               "goaltracker",
		DisableStartupMessage: true,
		ErrorHandler:          r.errorHandler,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.Metrics())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))
	r.App = app

	protected := middleware.Protected([]byte(cfg.Auth.JWTSecret), cfg.Auth.CookieName)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, appLogger.Named("ratelimit")).Handler()

	r.Get("/health", r.Health)
	r.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.Post("/register", limiter, r.Register)
	auth.Post("/login", limiter, r.Login)
	auth.Post("/logout", r.Logout)
	auth.Get("/me", protected, limiter, r.Me)

	goals := api.Group("/goals", protected, limiter)
	goals.Post("/create", r.CreateGoal)
	goals.Get("/user-goals", r.ListGoals)
	goals.Put("/:goalId/complete", r.CompleteGoal)

	groups := api.Group("/groups", protected, limiter)
	groups.Post("/create", r.CreateGroup)
	groups.Get("/user-groups", r.GetUserGroups)
	groups.Post("/add-member", r.AddMember)
	groups.Post("/remove-member", r.RemoveMember)
	groups.Delete("/:groupId/members/:userId", r.DeleteMember)
	groups.Get("/:groupId", r.GetGroupDetails)

	market := api.Group("/marketplace")
	market.Get("/getitems", r.GetItems)
	market.Post("/create", protected, limiter, r.CreateItem)
	market.Get("/:itemId", r.GetItem)
	market.Put("/:itemId", protected, limiter, r.UpdateItem)
	return r
}
