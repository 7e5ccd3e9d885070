package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/erp-workflow/internal/api/http/handlers"
	"github.com/spec-kit/erp-workflow/internal/auth"
	"github.com/spec-kit/erp-workflow/internal/config"
	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/lock"
	"github.com/spec-kit/erp-workflow/internal/observability"
	"github.com/spec-kit/erp-workflow/internal/repository/memory"
	"github.com/spec-kit/erp-workflow/internal/service"
)

type testServer struct {
	app    *fiber.App
	tokens map[string]string
	ids    map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memory.NewStore()
	tokenMgr := auth.NewTokenManager("test-secret", 5)
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: 4}, store.Users(), tokenMgr, logger)

	srv := &testServer{tokens: map[string]string{}, ids: map[string]string{}}
	for name, role := range map[string]domain.UserRole{
		"admin":  domain.UserRoleAdmin,
		"raiser": domain.UserRoleEmployee,
		"pc":     domain.UserRoleEmployee,
		"solver": domain.UserRoleEmployee,
	} {
		user, err := authService.CreateUser(context.Background(), service.CreateUserInput{
			Name:     name,
			Email:    name + "@example.com",
			Password: "password-" + name,
			Role:     role,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
		token, _, err := tokenMgr.GenerateToken(user.ID, user.Role)
		if err != nil {
			t.Fatalf("token %s: %v", name, err)
		}
		srv.ids[name] = user.ID
		srv.tokens[name] = token
	}

	rt := service.Runtime{Locker: lock.NewLocalLocker(), Logger: logger, Metrics: metrics}
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		HistoryRepo: store.History(),
		UserRepo:    store.Users(),
		Runtime:     rt,
	})
	orders := service.NewOrderService(service.OrderDependencies{
		OrderRepo: store.Orders(),
		UserRepo:  store.Users(),
		Runtime:   rt,
	})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("erp-workflow-service", "test", nil, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Orders:         handlers.NewOrdersHandler(orders),
		AuthMiddleware: auth.NewAuthMiddleware(tokenMgr, store.Users()),
	})
	srv.app = app
	return srv
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, as string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if as != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.tokens[as])
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return v
}

func expectError(t *testing.T, status int, env envelope, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus || env.Error == nil || env.Error.Code != wantCode {
		t.Fatalf("expected %d %s, got %d %+v", wantStatus, wantCode, status, env.Error)
	}
}

func TestHealthAndAuthentication(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("live returned %d", status)
	}
	status, _ = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("ready without checks returned %d", status)
	}

	status, env := s.do(t, fiber.MethodGet, "/tickets", "", nil)
	expectError(t, status, env, fiber.StatusUnauthorized, "UNAUTHORIZED")

	status, env = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "pc@example.com", "password": "password-pc"})
	if status != fiber.StatusOK {
		t.Fatalf("login returned %d %+v", status, env.Error)
	}
	login := decode[struct {
		AccessToken string `json:"access_token"`
	}](t, env)
	if login.AccessToken == "" {
		t.Fatalf("login returned no token")
	}

	status, env = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "pc@example.com"})
	expectError(t, status, env, fiber.StatusBadRequest, "VALIDATION_FAILED")
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t)
	newUser := map[string]string{"name": "Ravi", "email": "ravi@example.com", "password": "ravi-password"}

	status, env := s.do(t, fiber.MethodPost, "/users", "raiser", newUser)
	expectError(t, status, env, fiber.StatusForbidden, "FORBIDDEN")

	status, env = s.do(t, fiber.MethodPost, "/users", "admin", newUser)
	if status != fiber.StatusCreated {
		t.Fatalf("admin create returned %d %+v", status, env.Error)
	}
	status, env = s.do(t, fiber.MethodPost, "/users", "admin", newUser)
	expectError(t, status, env, fiber.StatusConflict, "CONFLICT")

	status, env = s.do(t, fiber.MethodGet, "/users/me", "pc", nil)
	if status != fiber.StatusOK {
		t.Fatalf("me returned %d", status)
	}
	if me := decode[map[string]any](t, env); me["id"] != s.ids["pc"] {
		t.Fatalf("unexpected me %+v", me)
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, fiber.MethodPost, "/tickets", "raiser", map[string]any{
		"issue_description": "VPN drops every hour",
		"pc_accountable":    s.ids["pc"],
	})
	if status != fiber.StatusCreated {
		t.Fatalf("raise returned %d %+v", status, env.Error)
	}
	ticket := decode[map[string]any](t, env)
	id := ticket["id"].(string)
	base := "/tickets/" + id

	status, env = s.do(t, fiber.MethodPost, base+"/plan", "raiser", map[string]any{
		"problem_solver": s.ids["solver"], "solver_planned_date": "2026-02-01",
	})
	expectError(t, status, env, fiber.StatusForbidden, "FORBIDDEN")

	status, env = s.do(t, fiber.MethodPost, base+"/plan", "pc", map[string]any{"problem_solver": s.ids["solver"]})
	expectError(t, status, env, fiber.StatusBadRequest, "VALIDATION_FAILED")

	status, env = s.do(t, fiber.MethodPost, base+"/plan", "pc", map[string]any{
		"problem_solver": s.ids["solver"], "solver_planned_date": "2026-02-01",
	})
	if status != fiber.StatusOK {
		t.Fatalf("plan returned %d %+v", status, env.Error)
	}
	planned := decode[map[string]any](t, env)
	if planned["current_stage"].(float64) != 3 || planned["solver_planned_date"] != "2026-02-01" {
		t.Fatalf("unexpected planned ticket %+v", planned)
	}

	status, env = s.do(t, fiber.MethodPost, base+"/confirm", "pc", map[string]any{"pc_status_stage4": "Confident"})
	expectError(t, status, env, fiber.StatusUnprocessableEntity, "INVALID_STATE")

	status, env = s.do(t, fiber.MethodGet, base, "solver", nil)
	if status != fiber.StatusOK {
		t.Fatalf("get returned %d", status)
	}
	view := decode[map[string]any](t, env)
	allowed, _ := view["allowed_actions"].([]any)
	if len(allowed) != 2 || allowed[0] != "SOLVE" || allowed[1] != "REVISE_DATE" {
		t.Fatalf("solver should be offered solve and revise, got %v", view["allowed_actions"])
	}

	status, env = s.do(t, fiber.MethodPost, base+"/solve", "solver", map[string]any{"solver_remark": "renewed certificate"})
	if status != fiber.StatusOK {
		t.Fatalf("solve returned %d %+v", status, env.Error)
	}

	status, env = s.do(t, fiber.MethodGet, base+"/history", "raiser", nil)
	if status != fiber.StatusOK {
		t.Fatalf("history returned %d", status)
	}
	history := decode[[]struct {
		ActionType string `json:"action_type"`
		Changes    []struct {
			Field     string `json:"field"`
			Important bool   `json:"important"`
		} `json:"changes"`
	}](t, env)
	if len(history) != 2 || history[0].ActionType != "PLANNED" || history[1].ActionType != "SOLVED" {
		t.Fatalf("unexpected history %+v", history)
	}
	var solverRemarkFlagged bool
	for _, change := range history[1].Changes {
		if change.Field == "solver_remark" && change.Important {
			solverRemarkFlagged = true
		}
	}
	if !solverRemarkFlagged {
		t.Fatalf("solver_remark must be flagged on SOLVED: %+v", history[1].Changes)
	}

	status, env = s.do(t, fiber.MethodGet, "/tickets?mine=true&stage=4", "solver", nil)
	if status != fiber.StatusOK {
		t.Fatalf("list returned %d", status)
	}
	if list := decode[[]map[string]any](t, env); len(list) != 1 {
		t.Fatalf("expected one ticket at stage 4, got %d", len(list))
	}

	status, env = s.do(t, fiber.MethodGet, "/tickets/does-not-exist", "solver", nil)
	expectError(t, status, env, fiber.StatusNotFound, "NOT_FOUND")
}

func TestOrderDependencyOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, fiber.MethodPost, "/orders", "raiser", map[string]any{
		"party_name": "Acme Traders",
		"items":      []map[string]any{{"item_name": "Crates", "qty": "4"}, {"item_name": "Pallets"}},
		"steps": []map[string]any{
			{"step_name": "Pack", "dependency_group": 1},
			{"step_name": "Ship", "dependency_group": 2},
		},
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create returned %d %+v", status, env.Error)
	}
	order := decode[struct {
		ID            string `json:"id"`
		OverallStatus string `json:"overall_status"`
		Items         []any  `json:"items"`
		Steps         []struct {
			ID       string `json:"id"`
			StepName string `json:"step_name"`
		} `json:"steps"`
	}](t, env)
	if order.OverallStatus != "PENDING" || len(order.Items) != 1 || len(order.Steps) != 2 {
		t.Fatalf("unexpected order %+v", order)
	}
	pack, ship := order.Steps[0].ID, order.Steps[1].ID
	stepURL := func(step, action string) string {
		return "/orders/" + order.ID + "/steps/" + step + "/" + action
	}

	status, env = s.do(t, fiber.MethodPost, stepURL(ship, "assign"), "raiser", map[string]any{"assigned_to": s.ids["solver"]})
	if status != fiber.StatusOK {
		t.Fatalf("assign ship returned %d %+v", status, env.Error)
	}
	status, env = s.do(t, fiber.MethodPost, stepURL(ship, "complete"), "solver", map[string]any{"remarks": "loaded"})
	expectError(t, status, env, fiber.StatusUnprocessableEntity, "DEPENDENCY_BLOCKED")
	if env.Error.Details["blocking_step"] != "Pack" {
		t.Fatalf("dependency error must name Pack: %+v", env.Error.Details)
	}

	status, env = s.do(t, fiber.MethodPost, stepURL(pack, "complete"), "pc", nil)
	expectError(t, status, env, fiber.StatusUnprocessableEntity, "INVALID_STATE")

	status, _ = s.do(t, fiber.MethodPost, stepURL(pack, "assign"), "raiser", map[string]any{"assigned_to": s.ids["pc"], "planned_date": "2026-01-25"})
	if status != fiber.StatusOK {
		t.Fatalf("assign pack returned %d", status)
	}
	status, _ = s.do(t, fiber.MethodPost, stepURL(pack, "complete"), "pc", map[string]any{"remarks": "packed"})
	if status != fiber.StatusOK {
		t.Fatalf("complete pack returned %d", status)
	}
	status, env = s.do(t, fiber.MethodPost, stepURL(ship, "complete"), "solver", map[string]any{"remarks": "loaded"})
	if status != fiber.StatusOK {
		t.Fatalf("complete ship returned %d %+v", status, env.Error)
	}
	change := decode[struct {
		OverallStatus string `json:"overall_status"`
		Step          struct {
			Status string `json:"status"`
		} `json:"step"`
	}](t, env)
	if change.OverallStatus != "COMPLETE" || change.Step.Status != "COMPLETED" {
		t.Fatalf("unexpected change %+v", change)
	}

	status, env = s.do(t, fiber.MethodGet, "/orders?overall_status=COMPLETE", "raiser", nil)
	if status != fiber.StatusOK {
		t.Fatalf("list returned %d", status)
	}
	if list := decode[[]map[string]any](t, env); len(list) != 1 {
		t.Fatalf("expected one complete order, got %d", len(list))
	}

	status, env = s.do(t, fiber.MethodGet, "/orders?overall_status=DONE", "raiser", nil)
	expectError(t, status, env, fiber.StatusBadRequest, "VALIDATION_FAILED")

	status, env = s.do(t, fiber.MethodGet, "/orders/step-template", "raiser", nil)
	if status != fiber.StatusOK {
		t.Fatalf("template returned %d", status)
	}
	if tpl := decode[[]map[string]any](t, env); len(tpl) == 0 || tpl[0]["name"] != "Order Confirmation" {
		t.Fatalf("unexpected template %+v", tpl)
	}
}
