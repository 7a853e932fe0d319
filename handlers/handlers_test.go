package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hrms-service/config"
	"hrms-service/middleware"
	"hrms-service/models"
	"hrms-service/services"
	"hrms-service/store"
	"hrms-service/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

var testAuth = config.AuthConfig{
	TokenSecret: []byte("test-secret"),
	Issuer:      "hrms-test",
	TokenTTL:    time.Hour,
	BcryptCost:  bcrypt.MinCost,
}

type fixture struct {
	users      *store.MemoryUserStore
	records    *store.MemoryAttendanceStore
	creds      *services.Credentials
	auth       *AuthHandler
	employees  *EmployeeHandler
	attendance *AttendanceHandler
}

func newFixture() *fixture {
	users := store.NewMemoryUserStore()
	records := store.NewMemoryAttendanceStore(users)
	creds := services.NewCredentials(users, testAuth.BcryptCost)
	return &fixture{
		users:      users,
		records:    records,
		creds:      creds,
		auth:       NewAuthHandler(testAuth, creds),
		employees:  NewEmployeeHandler(creds),
		attendance: NewAttendanceHandler(services.NewLedger(records), services.NewReports(records)),
	}
}

func (f *fixture) register(t *testing.T, email string, role models.Role) models.User {
	t.Helper()
	user, err := f.creds.Register(context.Background(), services.RegisterInput{
		Email: email, Password: "secret1", Name: email, Role: role,
	})
	assert.NoError(t, err)
	return user
}

func serve(handler middleware.AppHandler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	middleware.ErrorHandler(handler).ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, user models.User) *http.Request {
	claims := &utils.Claims{UserID: user.ID, Email: user.Email, Role: user.Role}
	return req.WithContext(middleware.ContextWithClaims(req.Context(), claims))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestRegisterHandler(t *testing.T) {
	f := newFixture()

	rr := serve(f.auth.RegisterHandler, jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "alice@x.com", "password": "secret1", "name": "Alice",
	}))
	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "User registered successfully", body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "alice@x.com", user["email"])
	assert.Equal(t, "EMPLOYEE", user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "PasswordHash")

	claims, err := utils.ParseToken(body["token"].(string), testAuth.TokenSecret)
	assert.NoError(t, err)
	assert.Equal(t, user["id"], claims.UserID)
	assert.Equal(t, models.RoleEmployee, claims.Role)

	rr = serve(f.auth.RegisterHandler, jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "ALICE@x.com", "password": "secret1", "name": "Alice",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Email already registered", decode(t, rr)["message"])
}

func TestRegisterHandlerValidation(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name    string
		body    interface{}
		message string
	}{
		{"bad email", map[string]string{"email": "nope", "password": "secret1", "name": "A"}, "Field 'email' must be a valid email"},
		{"short password", map[string]string{"email": "a@x.com", "password": "123", "name": "A"}, "Field 'password' must be at least 6 characters"},
		{"missing name", map[string]string{"email": "a@x.com", "password": "secret1"}, "Field 'name' is required"},
		{"bad role", map[string]string{"email": "a@x.com", "password": "secret1", "name": "A", "role": "ROOT"}, "Field 'role' must be one of: ADMIN EMPLOYEE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(f.auth.RegisterHandler, jsonRequest(http.MethodPost, "/api/auth/register", tc.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.message, decode(t, rr)["message"])
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("{"))
	rr := serve(f.auth.RegisterHandler, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterHandlerTokenError(t *testing.T) {
	orig := generateToken
	defer func() { generateToken = orig }()
	generateToken = func(utils.Claims, time.Duration, string, []byte) (string, error) {
		return "", errors.New("sign failed")
	}

	f := newFixture()
	rr := serve(f.auth.RegisterHandler, jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "alice@x.com", "password": "secret1", "name": "Alice",
	}))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decode(t, rr)["message"])
}

func TestLoginHandler(t *testing.T) {
	f := newFixture()
	alice := f.register(t, "alice@x.com", models.RoleEmployee)

	rr := serve(f.auth.LoginHandler, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "Alice@x.com", "password": "secret1",
	}))
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Login successful", body["message"])
	claims, err := utils.ParseToken(body["token"].(string), testAuth.TokenSecret)
	assert.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)

	rr = serve(f.auth.LoginHandler, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@x.com", "password": "wrong",
	}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid credentials", decode(t, rr)["message"])

	rr = serve(f.auth.LoginHandler, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@x.com",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMeHandler(t *testing.T) {
	f := newFixture()
	alice := f.register(t, "alice@x.com", models.RoleEmployee)

	rr := serve(f.auth.MeHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), alice))
	assert.Equal(t, http.StatusOK, rr.Code)
	user := decode(t, rr)["user"].(map[string]interface{})
	assert.Equal(t, alice.ID, user["id"])

	rr = serve(f.auth.MeHandler, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(f.auth.MeHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), models.User{ID: "ghost", Role: models.RoleEmployee}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestEmployeeHandlers(t *testing.T) {
	f := newFixture()
	admin := f.register(t, "admin@x.com", models.RoleAdmin)

	rr := serve(f.employees.CreateHandler, asUser(jsonRequest(http.MethodPost, "/api/employees", map[string]string{
		"email": "john@x.com", "password": "secret1", "name": "John", "department": "Engineering", "role": "ADMIN",
	}), admin))
	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Employee created successfully", body["message"])
	employee := body["employee"].(map[string]interface{})
	assert.Equal(t, "EMPLOYEE", employee["role"])
	id := employee["id"].(string)

	rr = serve(f.employees.CreateHandler, asUser(jsonRequest(http.MethodPost, "/api/employees", map[string]string{
		"email": "JOHN@x.com", "password": "secret1", "name": "John",
	}), admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Email already registered", decode(t, rr)["message"])

	rr = serve(f.employees.ListHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/employees", nil), admin))
	assert.Equal(t, http.StatusOK, rr.Code)
	list := decode(t, rr)["employees"].([]interface{})
	assert.Len(t, list, 1)

	get := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/employees/"+id, nil), map[string]string{"id": id})
	rr = serve(f.employees.GetHandler, get)
	assert.Equal(t, http.StatusOK, rr.Code)

	update := mux.SetURLVars(jsonRequest(http.MethodPut, "/api/employees/"+id, map[string]string{
		"position": "Lead", "email": "admin@x.com",
	}), map[string]string{"id": id})
	rr = serve(f.employees.UpdateHandler, update)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Email already in use", decode(t, rr)["message"])

	update = mux.SetURLVars(jsonRequest(http.MethodPut, "/api/employees/"+id, map[string]string{
		"position": "Lead",
	}), map[string]string{"id": id})
	rr = serve(f.employees.UpdateHandler, update)
	assert.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.Equal(t, "Employee updated successfully", body["message"])
	assert.Equal(t, "Lead", body["employee"].(map[string]interface{})["position"])

	del := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/api/employees/"+id, nil), map[string]string{"id": id})
	rr = serve(f.employees.DeleteHandler, del)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Employee deleted successfully", decode(t, rr)["message"])

	rr = serve(f.employees.DeleteHandler, del)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Employee not found", decode(t, rr)["message"])
}

func TestAttendanceHandlersCycle(t *testing.T) {
	f := newFixture()
	alice := f.register(t, "alice@x.com", models.RoleEmployee)
	post := func(path string) *http.Request {
		return asUser(httptest.NewRequest(http.MethodPost, path, nil), alice)
	}

	rr := serve(f.attendance.CheckOutHandler, post("/api/attendance/check-out"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Must check in before checking out", decode(t, rr)["message"])

	rr = serve(f.attendance.CheckInHandler, post("/api/attendance/check-in"))
	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Checked in successfully", body["message"])
	attendance := body["attendance"].(map[string]interface{})
	assert.Equal(t, alice.ID, attendance["userId"])
	assert.Equal(t, models.DateOf(time.Now()).String(), attendance["date"])

	rr = serve(f.attendance.CheckInHandler, post("/api/attendance/check-in"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Already checked in today", decode(t, rr)["message"])

	rr = serve(f.attendance.TodayHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/attendance/today", nil), alice))
	assert.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.Equal(t, true, body["checkedIn"])
	assert.Equal(t, false, body["checkedOut"])

	rr = serve(f.attendance.CheckOutHandler, post("/api/attendance/check-out"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Checked out successfully", decode(t, rr)["message"])

	rr = serve(f.attendance.CheckOutHandler, post("/api/attendance/check-out"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Already checked out today", decode(t, rr)["message"])

	rr = serve(f.attendance.MyAttendanceHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/attendance/my", nil), alice))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["attendance"].([]interface{}), 1)
}

func TestCheckInRepairsRecordWithoutCheckIn(t *testing.T) {
	f := newFixture()
	alice := f.register(t, "alice@x.com", models.RoleEmployee)
	assert.NoError(t, f.records.Create(context.Background(), &models.AttendanceRecord{
		ID: "r1", User: models.Reference(alice.ID), Date: models.DateOf(time.Now()),
	}))

	rr := serve(f.attendance.CheckInHandler, asUser(httptest.NewRequest(http.MethodPost, "/api/attendance/check-in", nil), alice))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMyAttendanceDateParams(t *testing.T) {
	f := newFixture()
	alice := f.register(t, "alice@x.com", models.RoleEmployee)

	cases := []struct {
		query  string
		status int
	}{
		{"?startDate=2024-01-01&endDate=2024-01-31", http.StatusOK},
		{"?startDate=2024-01-01T00:00:00Z", http.StatusOK},
		{"?startDate=yesterday", http.StatusBadRequest},
		{"?startDate=2024-02-01&endDate=2024-01-01", http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := asUser(httptest.NewRequest(http.MethodGet, "/api/attendance/my"+tc.query, nil), alice)
		rr := serve(f.attendance.MyAttendanceHandler, req)
		assert.Equal(t, tc.status, rr.Code, tc.query)
	}
}

func TestReportHandlers(t *testing.T) {
	f := newFixture()
	admin := f.register(t, "admin@x.com", models.RoleAdmin)
	alice := f.register(t, "alice@x.com", models.RoleEmployee)
	ghost := f.register(t, "ghost@x.com", models.RoleEmployee)
	ctx := context.Background()

	for _, user := range []models.User{alice, ghost} {
		rr := serve(f.attendance.CheckInHandler, asUser(httptest.NewRequest(http.MethodPost, "/api/attendance/check-in", nil), user))
		assert.Equal(t, http.StatusCreated, rr.Code)
	}
	assert.NoError(t, f.creds.Delete(ctx, ghost.ID))

	rr := serve(f.attendance.ReportHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/attendance/report", nil), admin))
	assert.Equal(t, http.StatusOK, rr.Code)
	records := decode(t, rr)["attendance"].([]interface{})
	assert.Len(t, records, 2)
	var names []interface{}
	for _, raw := range records {
		user := raw.(map[string]interface{})["userId"]
		if user == nil {
			names = append(names, nil)
			continue
		}
		names = append(names, user.(map[string]interface{})["name"])
	}
	assert.ElementsMatch(t, []interface{}{"alice@x.com", nil}, names)

	rr = serve(f.attendance.ReportHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/attendance/report?userId="+alice.ID, nil), admin))
	assert.Len(t, decode(t, rr)["attendance"].([]interface{}), 1)

	rr = serve(f.attendance.ExportHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/attendance/report/export", nil), admin))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attendance-report-")

	book, err := excelize.OpenReader(rr.Body)
	assert.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Attendance")
	assert.NoError(t, err)
	assert.Len(t, rows, 3)

	rr = serve(f.attendance.ExportHandler, asUser(httptest.NewRequest(http.MethodGet, "/api/attendance/report/export?endDate=bad", nil), admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFormatValidationError(t *testing.T) {
	assert.Equal(t, "", FormatValidationError(nil))
	assert.Equal(t, "Invalid request payload", FormatValidationError(errors.New("other")))

	var target struct {
		Age int `json:"age"`
	}
	err := json.Unmarshal([]byte(`{"age":"x"}`), &target)
	assert.Equal(t, "Field 'age' should be of type int", FormatValidationError(err))
}

func TestRegisterHandlerLongPassword(t *testing.T) {
	f := newFixture()

	rr := serve(f.auth.RegisterHandler, jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "long@x.com", "password": strings.Repeat("a", 80), "name": "Long",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Field 'password' must be at most 72 characters", decode(t, rr)["message"])

	// 40 runes pass the length tag but encode to 80 bytes.
	rr = serve(f.auth.RegisterHandler, jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "wide@x.com", "password": strings.Repeat("é", 40), "name": "Wide",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Field 'password' must be at most 72 bytes", decode(t, rr)["message"])
}

func TestCreateEmployeeHandlerLongPassword(t *testing.T) {
	f := newFixture()
	admin := f.register(t, "admin@x.com", models.RoleAdmin)

	rr := serve(f.employees.CreateHandler, asUser(jsonRequest(http.MethodPost, "/api/employees", map[string]string{
		"email": "long@x.com", "password": strings.Repeat("a", 80), "name": "Long",
	}), admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(f.employees.CreateHandler, asUser(jsonRequest(http.MethodPost, "/api/employees", map[string]string{
		"email": "wide@x.com", "password": strings.Repeat("é", 40), "name": "Wide",
	}), admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Field 'password' must be at most 72 bytes", decode(t, rr)["message"])
}

func TestBlankNameHandlers(t *testing.T) {
	f := newFixture()
	admin := f.register(t, "admin@x.com", models.RoleAdmin)
	john := f.register(t, "john@x.com", models.RoleEmployee)

	rr := serve(f.auth.RegisterHandler, jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "blank@x.com", "password": "secret1", "name": "   ",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Field 'name' is required", decode(t, rr)["message"])

	rr = serve(f.employees.CreateHandler, asUser(jsonRequest(http.MethodPost, "/api/employees", map[string]string{
		"email": "blank@x.com", "password": "secret1", "name": "   ",
	}), admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Field 'name' is required", decode(t, rr)["message"])

	update := mux.SetURLVars(jsonRequest(http.MethodPut, "/api/employees/"+john.ID, map[string]string{
		"name": "   ",
	}), map[string]string{"id": john.ID})
	rr = serve(f.employees.UpdateHandler, update)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Field 'name' is required", decode(t, rr)["message"])
}
