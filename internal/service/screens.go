package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// Column is one table column: the record key and its heading.
type Column struct {
	Key   string
	Title string
}

// Row is a rendered table row; Link, when set, targets a detail screen.
type Row struct {
	Cells []string
	Link  string
}

// Table is a titled list of rows.
type Table struct {
	Title   string
	Columns []Column
	Rows    []Row
	Empty   string
}

// Stat is a dashboard counter.
type Stat struct {
	Label string
	Value int
}

// Screen is the view model of a role screen.
type Screen struct {
	Title  string
	Stats  []Stat
	Tables []Table
}

// ScreenRequest carries what a screen needs to load.
type ScreenRequest struct {
	Identity domainauth.Identity
	Params   map[string]string
	Query    url.Values
}

// ScreenFunc loads one screen.
type ScreenFunc func(ctx context.Context, req ScreenRequest) (Screen, error)

// record is one decoded backend object.
type record map[string]any

const (
	dashboardCourseLimit = 5
	fanOutLimit          = 4
)

var (
	courseColumns = []Column{
		{"courseId", "编号"}, {"courseName", "课程名称"}, {"courseSemester", "学期"},
		{"courseStatus", "状态"}, {"enrollmentCount", "选课人数"}, {"courseLocation", "地点"},
	}
	assignmentColumns = []Column{
		{"assignmentId", "编号"}, {"courseName", "课程"}, {"assignmentTitle", "作业名称"},
		{"startTime", "开始时间"}, {"endTime", "截止时间"}, {"assignmentStatus", "状态"},
	}
	answerColumns = []Column{
		{"answerId", "编号"}, {"assignmentTitle", "作业"}, {"studentName", "学生"},
		{"submissionTime", "提交时间"}, {"answerStatus", "状态"}, {"score", "分数"},
	}
	gradeColumns = []Column{
		{"assignmentTitle", "作业名称"}, {"courseName", "课程"}, {"submissionTime", "提交时间"},
		{"answerStatus", "状态"}, {"score", "分数"}, {"teacherFeedback", "教师评语"},
	}
	feedbackColumns = []Column{
		{"feedbackId", "编号"}, {"studentName", "学生"}, {"feedbackContent", "内容"},
		{"replyContent", "回复"}, {"publishTime", "发布时间"},
	}
	resourceColumns = []Column{
		{"resourceId", "编号"}, {"courseName", "课程"}, {"resourceName", "资源名称"},
		{"resourceType", "类型"}, {"uploadTime", "上传时间"},
	}
	userColumns = []Column{
		{"userId", "编号"}, {"username", "用户名"}, {"realName", "姓名"}, {"role", "角色"},
		{"phoneNumber", "手机号"}, {"college", "学院"}, {"className", "班级"},
	}
	profileColumns = []Column{
		{"username", "用户名"}, {"realName", "姓名"}, {"phoneNumber", "手机号"}, {"email", "邮箱"},
		{"studentId", "学号"}, {"college", "学院"}, {"major", "专业"}, {"className", "班级"},
	}
)

var statusLabels = map[string]string{
	"NotStarted":   "未开始",
	"Ongoing":      "进行中",
	"Ended":        "已结束",
	"NotSubmitted": "未提交",
	"Submitted":    "已提交",
	"Graded":       "已批改",
	"teacher":      "教师",
	"student":      "学生",
	"officer":      "教务",
}

// ScreenServiceOptions groups dependencies for ScreenService.
type ScreenServiceOptions struct {
	Data   ports.DataBackend
	Logger *slog.Logger
}

// ScreenService loads role screens from the course backend.
// Transient failures are returned to the caller unchanged.
type ScreenService struct {
	data   ports.DataBackend
	logger *slog.Logger
}

// NewScreenService constructs a ScreenService.
func NewScreenService(opts ScreenServiceOptions) *ScreenService {
	return &ScreenService{data: opts.Data, logger: opts.Logger}
}

func (s *ScreenService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *ScreenService) list(ctx context.Context, path string, query url.Values) ([]record, error) {
	raw, err := s.data.GetData(ctx, path, query)
	if err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

func (s *ScreenService) one(ctx context.Context, path string) (record, error) {
	recs, err := s.list(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperrors.NotFound("记录不存在")
	}
	return recs[0], nil
}

// teacherCourses lists the courses taught by the identity.
func (s *ScreenService) teacherCourses(ctx context.Context, id domainauth.Identity) ([]record, error) {
	return s.list(ctx, "/courses/teacher/"+url.PathEscape(id.UserID), nil)
}

// assignmentsFor fetches the assignments of each course concurrently and
// stamps them with the course name.
func (s *ScreenService) assignmentsFor(ctx context.Context, courses []record) ([]record, error) {
	return fanOut(ctx, courses, func(ctx context.Context, c record) ([]record, error) {
		q := url.Values{"courseId": {str(c["courseId"])}}
		list, err := s.list(ctx, "/assignments", q)
		if err != nil {
			return nil, err
		}
		for _, a := range list {
			if _, ok := a["courseName"]; !ok {
				a["courseName"] = c["courseName"]
			}
		}
		return list, nil
	})
}

// childrenOf fetches path?param=<parent[key]> for each parent concurrently,
// copying the named parent fields onto every child.
func (s *ScreenService) childrenOf(
	ctx context.Context,
	parents []record,
	path, param, key string,
	inherit ...string,
) ([]record, error) {
	return fanOut(ctx, parents, func(ctx context.Context, p record) ([]record, error) {
		list, err := s.list(ctx, path, url.Values{param: {str(p[key])}})
		if err != nil {
			return nil, err
		}
		for _, child := range list {
			for _, f := range inherit {
				if _, ok := child[f]; !ok {
					child[f] = p[f]
				}
			}
		}
		return list, nil
	})
}

// fanOut runs fn for every item with bounded concurrency and concatenates the
// results in item order. The first error cancels the rest.
func fanOut(ctx context.Context, items []record, fn func(context.Context, record) ([]record, error)) ([]record, error) {
	results := make([][]record, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, item := range items {
		g.Go(func() error {
			out, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []record
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// TeacherDashboard shows the teacher's courses and their assignments.
func (s *ScreenService) TeacherDashboard(ctx context.Context, req ScreenRequest) (Screen, error) {
	courses, err := s.teacherCourses(ctx, req.Identity)
	if err != nil {
		return Screen{}, err
	}
	assignments, err := s.assignmentsFor(ctx, head(courses, dashboardCourseLimit))
	if err != nil {
		return Screen{}, err
	}
	return Screen{
		Title: "控制台",
		Stats: []Stat{{"我的课程", len(courses)}, {"近期作业", len(assignments)}},
		Tables: []Table{
			buildTable("我的课程", courseColumns, head(courses, dashboardCourseLimit), "暂无课程", nil),
			buildTable("近期作业", assignmentColumns, head(assignments, dashboardCourseLimit), "暂无作业", nil),
		},
	}, nil
}

// OfficerDashboard loads courses and users in parallel.
func (s *ScreenService) OfficerDashboard(ctx context.Context, _ ScreenRequest) (Screen, error) {
	var courses, users []record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = s.list(gctx, "/courses", nil)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.list(gctx, "/users", nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return Screen{}, err
	}

	byRole := map[string]int{}
	for _, u := range users {
		byRole[str(u["role"])]++
	}
	return Screen{
		Title: "控制台",
		Stats: []Stat{
			{"课程总数", len(courses)},
			{"用户总数", len(users)},
			{"教师", byRole[string(domainauth.RoleTeacher)]},
			{"学生", byRole[string(domainauth.RoleStudent)]},
		},
		Tables: []Table{
			buildTable("最新课程", courseColumns, head(courses, dashboardCourseLimit), "暂无课程", nil),
		},
	}, nil
}

// StudentDashboard shows recent grades and pending assignments.
func (s *ScreenService) StudentDashboard(ctx context.Context, req ScreenRequest) (Screen, error) {
	var courses, answers []record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = s.list(gctx, "/courses", nil)
		return err
	})
	g.Go(func() (err error) {
		answers, err = s.list(gctx, "/answers", url.Values{"studentId": {req.Identity.UserID}})
		return err
	})
	if err := g.Wait(); err != nil {
		return Screen{}, err
	}

	assignments, err := s.assignmentsFor(ctx, head(courses, dashboardCourseLimit))
	if err != nil {
		return Screen{}, err
	}

	var graded []record
	for _, a := range answers {
		if str(a["answerStatus"]) == "Graded" {
			graded = append(graded, a)
		}
	}
	return Screen{
		Title: "控制台",
		Stats: []Stat{{"可选课程", len(courses)}, {"已批改作业", len(graded)}},
		Tables: []Table{
			buildTable("最近成绩", gradeColumns, head(graded, dashboardCourseLimit), "暂无成绩", nil),
			buildTable("待完成作业", assignmentColumns, head(assignments, dashboardCourseLimit), "暂无作业",
				linkBy("/student/assignments/", "assignmentId")),
		},
	}, nil
}

// TeacherCourses lists the teacher's courses with a link to create assignments.
func (s *ScreenService) TeacherCourses(ctx context.Context, req ScreenRequest) (Screen, error) {
	courses, err := s.teacherCourses(ctx, req.Identity)
	if err != nil {
		return Screen{}, err
	}
	return Screen{
		Title: "课程管理",
		Tables: []Table{buildTable("我的课程", courseColumns, courses, "暂无课程",
			func(r record) string {
				return "/teacher/courses/" + url.PathEscape(str(r["courseId"])) + "/assignments/new"
			})},
	}, nil
}

// TeacherGrading collects answers across every assignment of the teacher's courses.
func (s *ScreenService) TeacherGrading(ctx context.Context, req ScreenRequest) (Screen, error) {
	courses, err := s.teacherCourses(ctx, req.Identity)
	if err != nil {
		return Screen{}, err
	}
	assignments, err := s.assignmentsFor(ctx, courses)
	if err != nil {
		return Screen{}, err
	}
	answers, err := s.childrenOf(ctx, assignments, "/answers", "assignmentId", "assignmentId", "assignmentTitle", "courseName")
	if err != nil {
		return Screen{}, err
	}
	pending := 0
	for _, a := range answers {
		if str(a["answerStatus"]) == "Submitted" {
			pending++
		}
	}
	return Screen{
		Title:  "作业批改",
		Stats:  []Stat{{"提交总数", len(answers)}, {"待批改", pending}},
		Tables: []Table{buildTable("学生提交", answerColumns, answers, "暂无提交", nil)},
	}, nil
}

// TeacherResources lists the files of every course the teacher owns.
func (s *ScreenService) TeacherResources(ctx context.Context, req ScreenRequest) (Screen, error) {
	courses, err := s.teacherCourses(ctx, req.Identity)
	if err != nil {
		return Screen{}, err
	}
	files, err := fanOut(ctx, courses, func(ctx context.Context, c record) ([]record, error) {
		list, err := s.list(ctx, "/files/course/"+url.PathEscape(str(c["courseId"])), nil)
		if err != nil {
			return nil, err
		}
		for _, f := range list {
			f["courseName"] = c["courseName"]
		}
		return list, nil
	})
	if err != nil {
		return Screen{}, err
	}
	return Screen{
		Title:  "课程资源",
		Tables: []Table{buildTable("课程资源", resourceColumns, files, "暂无资源", nil)},
	}, nil
}

// TeacherFeedback collects student questions across the teacher's assignments.
func (s *ScreenService) TeacherFeedback(ctx context.Context, req ScreenRequest) (Screen, error) {
	courses, err := s.teacherCourses(ctx, req.Identity)
	if err != nil {
		return Screen{}, err
	}
	assignments, err := s.assignmentsFor(ctx, courses)
	if err != nil {
		return Screen{}, err
	}
	feedbacks, err := s.childrenOf(ctx, assignments, "/feedbacks", "assignmentId", "assignmentId")
	if err != nil {
		return Screen{}, err
	}
	sortByDesc(feedbacks, "publishTime")
	return Screen{
		Title:  "答疑看板",
		Tables: []Table{buildTable("学生提问", feedbackColumns, feedbacks, "暂无提问", nil)},
	}, nil
}

// AllCourses lists every course. Students get a link to the course detail.
func (s *ScreenService) AllCourses(ctx context.Context, req ScreenRequest) (Screen, error) {
	courses, err := s.list(ctx, "/courses", nil)
	if err != nil {
		return Screen{}, err
	}
	var link func(record) string
	title := "课程管理"
	if req.Identity.Role == domainauth.RoleStudent {
		link = linkBy("/student/courses/", "courseId")
		title = "我的课程"
	}
	return Screen{
		Title:  title,
		Tables: []Table{buildTable("课程列表", courseColumns, courses, "暂无课程", link)},
	}, nil
}

// Users lists every account.
func (s *ScreenService) Users(ctx context.Context, _ ScreenRequest) (Screen, error) {
	users, err := s.list(ctx, "/users", nil)
	if err != nil {
		return Screen{}, err
	}
	return Screen{
		Title:  "人员管理",
		Tables: []Table{buildTable("用户列表", userColumns, users, "暂无用户", nil)},
	}, nil
}

// StudentCourseDetail loads a course with its assignments and files in parallel.
func (s *ScreenService) StudentCourseDetail(ctx context.Context, req ScreenRequest) (Screen, error) {
	courseID := req.Params["courseId"]
	if courseID == "" {
		return Screen{}, apperrors.ValidationField("courseId", "缺少课程编号")
	}

	var (
		course      record
		assignments []record
		files       []record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		course, err = s.one(gctx, "/courses/"+url.PathEscape(courseID))
		return err
	})
	g.Go(func() (err error) {
		assignments, err = s.list(gctx, "/assignments", url.Values{"courseId": {courseID}})
		return err
	})
	g.Go(func() (err error) {
		files, err = s.list(gctx, "/files/course/"+url.PathEscape(courseID), nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return Screen{}, err
	}

	return Screen{
		Title: orDefault(str(course["courseName"]), "课程详情"),
		Tables: []Table{
			detailTable("课程信息", courseColumns, course),
			buildTable("课程作业", assignmentColumns, assignments, "暂无作业", linkBy("/student/assignments/", "assignmentId")),
			buildTable("课程资源", resourceColumns, files, "暂无资源", nil),
		},
	}, nil
}

// StudentAssignment shows the student's own submission and the assignment's Q&A.
func (s *ScreenService) StudentAssignment(ctx context.Context, req ScreenRequest) (Screen, error) {
	assignmentID := req.Params["assignmentId"]
	if assignmentID == "" {
		return Screen{}, apperrors.ValidationField("assignmentId", "缺少作业编号")
	}

	var answers, feedbacks []record
	q := url.Values{"assignmentId": {assignmentID}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		answers, err = s.list(gctx, "/answers", q)
		return err
	})
	g.Go(func() (err error) {
		feedbacks, err = s.list(gctx, "/feedbacks", q)
		return err
	})
	if err := g.Wait(); err != nil {
		return Screen{}, err
	}

	own := answers[:0]
	for _, a := range answers {
		sid := str(a["studentId"])
		if sid == req.Identity.UserID || (req.Identity.StudentID != "" && sid == req.Identity.StudentID) {
			own = append(own, a)
		}
	}
	return Screen{
		Title: "作业详情",
		Tables: []Table{
			buildTable("我的提交", gradeColumns, own, "尚未提交", nil),
			buildTable("答疑", feedbackColumns, feedbacks, "暂无提问", nil),
		},
	}, nil
}

// StudentGrades lists the student's answers.
func (s *ScreenService) StudentGrades(ctx context.Context, req ScreenRequest) (Screen, error) {
	answers, err := s.list(ctx, "/answers", url.Values{"studentId": {req.Identity.UserID}})
	if err != nil {
		return Screen{}, err
	}
	sortByDesc(answers, "submissionTime")
	return Screen{
		Title:  "成绩查询",
		Tables: []Table{buildTable("我的成绩", gradeColumns, answers, "暂无成绩", nil)},
	}, nil
}

// StudentFeedback lists questions, optionally narrowed to one assignment.
func (s *ScreenService) StudentFeedback(ctx context.Context, req ScreenRequest) (Screen, error) {
	q := url.Values{}
	if id := req.Query.Get("assignmentId"); id != "" {
		q.Set("assignmentId", id)
	}
	feedbacks, err := s.list(ctx, "/feedbacks", q)
	if err != nil {
		return Screen{}, err
	}
	sortByDesc(feedbacks, "publishTime")
	return Screen{
		Title:  "答疑反馈",
		Tables: []Table{buildTable("答疑记录", feedbackColumns, feedbacks, "暂无记录", nil)},
	}, nil
}

// Profile shows the account as the backend knows it, falling back to the session identity.
func (s *ScreenService) Profile(ctx context.Context, req ScreenRequest) (Screen, error) {
	user, err := s.one(ctx, "/users/"+url.PathEscape(req.Identity.UserID))
	if err != nil {
		if !isMissing(err) {
			return Screen{}, err
		}
		s.log().DebugContext(ctx, "profile not found upstream; using session identity", "component", "screens")
		user = identityRecord(req.Identity)
	}
	return Screen{
		Title:  "个人中心",
		Tables: []Table{detailTable("个人信息", profileColumns, user)},
	}, nil
}

// AssignmentInput is the teacher's new-assignment form.
type AssignmentInput struct {
	CourseID          string `json:"courseId"`
	TeacherID         string `json:"teacherId"`
	AssignmentTitle   string `json:"assignmentTitle" validate:"required,max=100"`
	AssignmentContent string `json:"assignmentContent" validate:"max=5000"`
	StartTime         string `json:"startTime,omitempty"`
	EndTime           string `json:"endTime,omitempty"`
}

// CreateAssignment posts a new assignment for courseID on behalf of the teacher.
func (s *ScreenService) CreateAssignment(
	ctx context.Context,
	teacher domainauth.Identity,
	courseID string,
	in AssignmentInput,
) error {
	if strings.TrimSpace(in.AssignmentTitle) == "" {
		return apperrors.ValidationField("assignmentTitle", "请输入作业名称")
	}
	in.CourseID = courseID
	in.TeacherID = teacher.UserID
	if _, err := s.data.PostData(ctx, "/assignments", in); err != nil {
		return err
	}
	s.log().InfoContext(ctx, "assignment created", "component", "screens", "course_id", courseID)
	return nil
}

// statusCoder is implemented by upstream errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

func isMissing(err error) bool {
	if apperrors.IsNotFound(err) {
		return true
	}
	var sc statusCoder
	return errors.As(err, &sc) && sc.HTTPStatus() == http.StatusNotFound
}

// decodeRecords accepts a JSON array of objects, a single object or null.
func decodeRecords(raw json.RawMessage) ([]record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if trimmed[0] == '{' {
		var one record
		if err := dec.Decode(&one); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		return []record{one}, nil
	}
	var many []record
	if err := dec.Decode(&many); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return many, nil
}

func buildTable(title string, cols []Column, recs []record, empty string, link func(record) string) Table {
	t := Table{Title: title, Columns: cols, Empty: empty, Rows: make([]Row, 0, len(recs))}
	for _, r := range recs {
		row := Row{Cells: make([]string, len(cols))}
		for i, c := range cols {
			row.Cells[i] = cell(r[c.Key])
		}
		if link != nil {
			row.Link = link(r)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// detailTable renders one record as label/value rows.
func detailTable(title string, cols []Column, r record) Table {
	t := Table{Title: title, Columns: []Column{{"label", "项目"}, {"value", "内容"}}, Empty: "暂无信息"}
	for _, c := range cols {
		if v, ok := r[c.Key]; ok && v != nil && str(v) != "" {
			t.Rows = append(t.Rows, Row{Cells: []string{c.Title, cell(v)}})
		}
	}
	return t
}

func linkBy(prefix, key string) func(record) string {
	return func(r record) string {
		id := str(r[key])
		if id == "" {
			return ""
		}
		return prefix + url.PathEscape(id)
	}
}

func identityRecord(id domainauth.Identity) record {
	b, _ := json.Marshal(id)
	var r record
	_ = json.Unmarshal(b, &r)
	return r
}

func head(recs []record, n int) []record {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}

func sortByDesc(recs []record, key string) {
	sort.SliceStable(recs, func(i, j int) bool { return str(recs[i][key]) > str(recs[j][key]) })
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func cell(v any) string {
	s := str(v)
	if s == "" {
		return "-"
	}
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return s
}
