// Package devapi is an in-memory stand-in for the course backend, used for
// local development and end-to-end tests. It speaks the same envelope format,
// issues HS256 bearer tokens and answers 401 to missing, invalid or expired ones.
package devapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Config controls the dev backend.
type Config struct {
	// Secret signs bearer tokens; required.
	Secret   string
	TokenTTL time.Duration // default 2h when zero
	CodeTTL  time.Duration // default 5m when zero
	Logger   *slog.Logger
	Now      func() time.Time
}

// Server implements the course backend endpoints coursedesk calls.
type Server struct {
	store  *store
	tokens tokenIssuer
	codeTT time.Duration
	logger *slog.Logger
	now    func() time.Time
	mux    *http.ServeMux
}

// New constructs a seeded dev backend.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("devapi: secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 2 * time.Hour
	}
	codeTTL := cfg.CodeTTL
	if codeTTL == 0 {
		codeTTL = 5 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		store:  newSeededStore(),
		tokens: tokenIssuer{secret: []byte(cfg.Secret), ttl: ttl, now: now},
		codeTT: codeTTL,
		logger: cfg.Logger,
		now:    now,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/users/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/users/login-sms", s.handleLoginSMS)
	s.mux.HandleFunc("POST /api/sms/send", s.handleSendCode)
	s.mux.HandleFunc("POST /api/users/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/users/reset-password", s.handleResetPassword)

	s.mux.Handle("GET /api/courses", s.authed(s.handleCourses))
	s.mux.Handle("GET /api/courses/{id}", s.authed(s.handleCourse))
	s.mux.Handle("GET /api/courses/teacher/{teacherId}", s.authed(s.handleTeacherCourses))
	s.mux.Handle("GET /api/assignments", s.authed(s.handleAssignments))
	s.mux.Handle("POST /api/assignments", s.authed(s.handleCreateAssignment))
	s.mux.Handle("GET /api/answers", s.authed(s.handleAnswers))
	s.mux.Handle("GET /api/feedbacks", s.authed(s.handleFeedbacks))
	s.mux.Handle("GET /api/files/course/{courseId}", s.authed(s.handleFiles))
	s.mux.Handle("GET /api/users", s.authed(s.handleUsers))
	s.mux.Handle("GET /api/users/{id}", s.authed(s.handleUser))
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func ok(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, envelope{Code: http.StatusOK, Message: "success", Data: data})
}

// fail reports a business error the way the course backend does: HTTP 200 with
// a non-200 envelope code.
func fail(w http.ResponseWriter, msg string) {
	writeEnvelope(w, http.StatusOK, envelope{Code: http.StatusBadRequest, Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Code: http.StatusBadRequest, Message: "请求格式错误"})
		return false
	}
	return true
}

type userKey struct{}

// authed rejects requests without a valid bearer token with HTTP 401.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Code: http.StatusUnauthorized, Message: "未登录"})
			return
		}
		sub, err := s.tokens.verify(raw)
		if err != nil {
			s.log().DebugContext(r.Context(), "token rejected", "component", "devapi", "error", err)
			writeEnvelope(w, http.StatusUnauthorized, envelope{Code: http.StatusUnauthorized, Message: "登录已过期，请重新登录"})
			return
		}
		s.store.mu.RLock()
		u := s.store.userByID(sub)
		s.store.mu.RUnlock()
		if u == nil {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Code: http.StatusUnauthorized, Message: "用户不存在"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, *u)))
	})
}

func caller(r *http.Request) User {
	u, _ := r.Context().Value(userKey{}).(User)
	return u
}

type loginData struct {
	User
	Token string `json:"token"`
}

func (s *Server) loginResponse(w http.ResponseWriter, r *http.Request, u *User, method string) {
	token, err := s.tokens.issue(u)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, envelope{Code: http.StatusInternalServerError, Message: "签发令牌失败"})
		return
	}
	s.log().InfoContext(r.Context(), "dev login", "component", "devapi", "method", method, "user_id", u.UserID)
	ok(w, loginData{User: *u, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PhoneNumber string `json:"phoneNumber"`
		Password    string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.store.mu.RLock()
	u := s.store.userByPhone(in.PhoneNumber)
	s.store.mu.RUnlock()
	if u == nil || u.Password != in.Password {
		fail(w, "手机号或密码错误")
		return
	}
	s.loginResponse(w, r, u, "password")
}

func (s *Server) handleLoginSMS(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PhoneNumber string `json:"phoneNumber"`
		Code        string `json:"code"`
	}
	if !decode(w, r, &in) {
		return
	}
	if !s.consumeCode(in.PhoneNumber, "LOGIN", in.Code) {
		fail(w, "验证码错误或已过期")
		return
	}
	s.store.mu.RLock()
	u := s.store.userByPhone(in.PhoneNumber)
	s.store.mu.RUnlock()
	if u == nil {
		fail(w, "该手机号未注册")
		return
	}
	s.loginResponse(w, r, u, "sms")
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PhoneNumber string `json:"phoneNumber"`
		Type        string `json:"type"`
	}
	if !decode(w, r, &in) {
		return
	}
	switch in.Type {
	case "REGISTER", "LOGIN", "RESET_PASSWORD":
	default:
		fail(w, "验证码类型无效")
		return
	}

	code, err := sixDigits()
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, envelope{Code: http.StatusInternalServerError, Message: "验证码生成失败"})
		return
	}
	s.store.mu.Lock()
	s.store.codes[in.PhoneNumber] = issuedCode{code: code, purpose: in.Type, expiresAt: s.now().Add(s.codeTT)}
	s.store.mu.Unlock()

	// No SMS gateway in dev: the code goes to the log.
	s.log().InfoContext(r.Context(), "verification code issued",
		"component", "devapi", "phone", in.PhoneNumber, "type", in.Type, "code", code)
	ok(w, nil)
}

// consumeCode checks and burns a verification code.
func (s *Server) consumeCode(phone, purpose, code string) bool {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	c, found := s.store.codes[phone]
	if !found || c.purpose != purpose || c.code != code || !s.now().Before(c.expiresAt) {
		return false
	}
	delete(s.store.codes, phone)
	return true
}

// LastCode returns the pending verification code for phone, if any.
func (s *Server) LastCode(phone string) string {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	return s.store.codes[phone].code
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PhoneNumber string `json:"phoneNumber"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		Role        string `json:"role"`
		Code        string `json:"code"`
		RealName    string `json:"realName"`
		Email       string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Username == "" || len(in.Password) < 6 {
		fail(w, "用户名不能为空，密码至少6位")
		return
	}
	if !slices.Contains([]string{"teacher", "student", "officer"}, in.Role) {
		fail(w, "身份无效")
		return
	}
	if !s.consumeCode(in.PhoneNumber, "REGISTER", in.Code) {
		fail(w, "验证码错误或已过期")
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.store.userByPhone(in.PhoneNumber) != nil {
		fail(w, "该手机号已注册")
		return
	}
	u := &User{
		UserID: s.store.allocID(), Username: in.Username, Password: in.Password, RealName: in.RealName,
		PhoneNumber: in.PhoneNumber, Email: in.Email, Role: in.Role,
	}
	s.store.users = append(s.store.users, u)
	s.log().InfoContext(r.Context(), "dev account registered", "component", "devapi", "user_id", u.UserID, "role", u.Role)
	ok(w, u)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PhoneNumber string `json:"phoneNumber"`
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}
	if !decode(w, r, &in) {
		return
	}
	if len(in.NewPassword) < 6 {
		fail(w, "密码至少6位")
		return
	}
	if !s.consumeCode(in.PhoneNumber, "RESET_PASSWORD", in.Code) {
		fail(w, "验证码错误或已过期")
		return
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	u := s.store.userByPhone(in.PhoneNumber)
	if u == nil {
		fail(w, "该手机号未注册")
		return
	}
	u.Password = in.NewPassword
	ok(w, nil)
}

func (s *Server) handleCourses(w http.ResponseWriter, _ *http.Request) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	ok(w, s.store.courses)
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	id, err := atoi(r.PathValue("id"))
	if err != nil {
		fail(w, err.Error())
		return
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	c, found := s.store.courseByID(id)
	if !found {
		writeEnvelope(w, http.StatusNotFound, envelope{Code: http.StatusNotFound, Message: "课程不存在"})
		return
	}
	ok(w, c)
}

func (s *Server) handleTeacherCourses(w http.ResponseWriter, r *http.Request) {
	id, err := atoi(r.PathValue("teacherId"))
	if err != nil {
		fail(w, err.Error())
		return
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := []course{}
	for _, c := range s.store.courses {
		if c.TeacherID == id {
			out = append(out, c)
		}
	}
	ok(w, out)
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("courseId")
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := []assignment{}
	for _, a := range s.store.assignments {
		if courseID == "" || fmt.Sprint(a.CourseID) == courseID {
			out = append(out, s.store.withCourseName(a))
		}
	}
	ok(w, out)
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	u := caller(r)
	if u.Role != "teacher" {
		writeEnvelope(w, http.StatusForbidden, envelope{Code: http.StatusForbidden, Message: "仅教师可布置作业"})
		return
	}
	var in struct {
		CourseID          string `json:"courseId"`
		AssignmentTitle   string `json:"assignmentTitle"`
		AssignmentContent string `json:"assignmentContent"`
		StartTime         string `json:"startTime"`
		EndTime           string `json:"endTime"`
	}
	if !decode(w, r, &in) {
		return
	}
	courseID, err := atoi(in.CourseID)
	if err != nil || strings.TrimSpace(in.AssignmentTitle) == "" {
		fail(w, "课程或作业名称无效")
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	c, found := s.store.courseByID(courseID)
	if !found || c.TeacherID != u.UserID {
		fail(w, "课程不存在")
		return
	}
	a := assignment{
		AssignmentID: s.store.allocID(), CourseID: courseID, TeacherID: u.UserID,
		AssignmentTitle: in.AssignmentTitle, AssignmentContent: in.AssignmentContent,
		StartTime: in.StartTime, EndTime: in.EndTime, AssignmentStatus: "NotStarted",
	}
	s.store.assignments = append(s.store.assignments, a)
	ok(w, s.store.withCourseName(a))
}

func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assignmentID, studentID := q.Get("assignmentId"), q.Get("studentId")
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := []answer{}
	for _, a := range s.store.answers {
		if assignmentID != "" && fmt.Sprint(a.AssignmentID) != assignmentID {
			continue
		}
		if studentID != "" && fmt.Sprint(a.StudentID) != studentID {
			continue
		}
		out = append(out, s.store.decorateAnswer(a))
	}
	ok(w, out)
}

func (s *Server) handleFeedbacks(w http.ResponseWriter, r *http.Request) {
	assignmentID := r.URL.Query().Get("assignmentId")
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := []feedback{}
	for _, f := range s.store.feedbacks {
		if assignmentID == "" || fmt.Sprint(f.AssignmentID) == assignmentID {
			out = append(out, f)
		}
	}
	ok(w, out)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseId")
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := []resource{}
	for _, f := range s.store.resources {
		if fmt.Sprint(f.CourseID) == courseID {
			out = append(out, f)
		}
	}
	ok(w, out)
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := make([]User, 0, len(s.store.users))
	for _, u := range s.store.users {
		out = append(out, *u)
	}
	ok(w, out)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	u := s.store.userByID(r.PathValue("id"))
	if u == nil {
		writeEnvelope(w, http.StatusNotFound, envelope{Code: http.StatusNotFound, Message: "用户不存在"})
		return
	}
	ok(w, *u)
}

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
