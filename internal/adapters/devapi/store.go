package devapi

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"
)

// User is a dev backend account. Password never leaves the server.
type User struct {
	UserID      int    `json:"userId"`
	Username    string `json:"username"`
	Password    string `json:"-"`
	RealName    string `json:"realName,omitempty"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	StudentID   string `json:"studentId,omitempty"`
	College     string `json:"college,omitempty"`
	Major       string `json:"major,omitempty"`
	ClassName   string `json:"className,omitempty"`
}

type course struct {
	CourseID          int    `json:"courseId"`
	TeacherID         int    `json:"teacherId"`
	CourseName        string `json:"courseName"`
	CourseDescription string `json:"courseDescription,omitempty"`
	EnrollmentCount   int    `json:"enrollmentCount"`
	CourseStartDate   string `json:"courseStartDate,omitempty"`
	CourseEndDate     string `json:"courseEndDate,omitempty"`
	CourseStatus      string `json:"courseStatus"`
	CourseSemester    string `json:"courseSemester,omitempty"`
	CourseLocation    string `json:"courseLocation,omitempty"`
}

type assignment struct {
	AssignmentID      int    `json:"assignmentId"`
	CourseID          int    `json:"courseId"`
	TeacherID         int    `json:"teacherId"`
	AssignmentTitle   string `json:"assignmentTitle"`
	AssignmentContent string `json:"assignmentContent,omitempty"`
	StartTime         string `json:"startTime,omitempty"`
	EndTime           string `json:"endTime,omitempty"`
	AssignmentStatus  string `json:"assignmentStatus"`
	CourseName        string `json:"courseName,omitempty"`
}

type answer struct {
	AnswerID        int      `json:"answerId"`
	AssignmentID    int      `json:"assignmentId"`
	StudentID       int      `json:"studentId"`
	StudentName     string   `json:"studentName,omitempty"`
	AssignmentTitle string   `json:"assignmentTitle,omitempty"`
	CourseName      string   `json:"courseName,omitempty"`
	AnswerContent   string   `json:"answerContent,omitempty"`
	AnswerStatus    string   `json:"answerStatus"`
	Score           *float64 `json:"score,omitempty"`
	TeacherFeedback string   `json:"teacherFeedback,omitempty"`
	SubmissionTime  string   `json:"submissionTime,omitempty"`
}

type feedback struct {
	FeedbackID      int    `json:"feedbackId"`
	AssignmentID    int    `json:"assignmentId"`
	StudentID       int    `json:"studentId"`
	StudentName     string `json:"studentName,omitempty"`
	FeedbackContent string `json:"feedbackContent"`
	ReplyContent    string `json:"replyContent,omitempty"`
	PublishTime     string `json:"publishTime"`
}

type resource struct {
	ResourceID   int    `json:"resourceId"`
	CourseID     int    `json:"courseId"`
	ResourceName string `json:"resourceName"`
	ResourceType string `json:"resourceType"`
	UploadTime   string `json:"uploadTime"`
}

type issuedCode struct {
	code      string
	purpose   string
	expiresAt time.Time
}

// store is the in-memory catalog behind the dev backend.
type store struct {
	mu          sync.RWMutex
	users       []*User
	courses     []course
	assignments []assignment
	answers     []answer
	feedbacks   []feedback
	resources   []resource
	codes       map[string]issuedCode
	nextID      int
}

func score(v float64) *float64 { return &v }

// newSeededStore returns a catalog with one account per role and a small
// course, assignment and answer set.
func newSeededStore() *store {
	s := &store{
		codes:  make(map[string]issuedCode),
		nextID: 1000,
		users: []*User{
			{UserID: 1, Username: "wang", Password: "teacher123", RealName: "王老师", PhoneNumber: "13800000001",
				Email: "wang@example.edu", Role: "teacher", College: "理学院"},
			{UserID: 2, Username: "zhang", Password: "student123", RealName: "张三", PhoneNumber: "13800000002",
				Email: "zhang@example.edu", Role: "student", StudentID: "2023001", College: "理学院",
				Major: "数学与应用数学", ClassName: "数学2301"},
			{UserID: 3, Username: "jiaowu", Password: "officer123", RealName: "教务处", PhoneNumber: "13800000003",
				Role: "officer"},
			{UserID: 4, Username: "li", Password: "student123", RealName: "李四", PhoneNumber: "13800000004",
				Role: "student", StudentID: "2023002", College: "理学院", Major: "统计学", ClassName: "统计2301"},
		},
		courses: []course{
			{CourseID: 1, TeacherID: 1, CourseName: "高等数学", CourseDescription: "一元微积分", EnrollmentCount: 2,
				CourseStartDate: "2024-09-02", CourseEndDate: "2025-01-10", CourseStatus: "Ongoing",
				CourseSemester: "2024秋", CourseLocation: "教一101"},
			{CourseID: 2, TeacherID: 1, CourseName: "线性代数", EnrollmentCount: 1,
				CourseStartDate: "2025-02-24", CourseEndDate: "2025-06-27", CourseStatus: "NotStarted",
				CourseSemester: "2025春", CourseLocation: "教二203"},
		},
		assignments: []assignment{
			{AssignmentID: 11, CourseID: 1, TeacherID: 1, AssignmentTitle: "极限与连续", AssignmentContent: "习题1.1-1.5",
				StartTime: "2024-09-09 08:00", EndTime: "2024-09-16 23:59", AssignmentStatus: "Ended"},
			{AssignmentID: 12, CourseID: 1, TeacherID: 1, AssignmentTitle: "导数", AssignmentContent: "习题2.1-2.3",
				StartTime: "2024-09-23 08:00", EndTime: "2024-09-30 23:59", AssignmentStatus: "Ongoing"},
		},
		answers: []answer{
			{AnswerID: 101, AssignmentID: 11, StudentID: 2, StudentName: "张三", AnswerContent: "见附件",
				AnswerStatus: "Graded", Score: score(92), TeacherFeedback: "步骤清晰", SubmissionTime: "2024-09-15 21:03"},
			{AnswerID: 102, AssignmentID: 11, StudentID: 4, StudentName: "李四", AnswerContent: "见附件",
				AnswerStatus: "Submitted", SubmissionTime: "2024-09-16 22:40"},
			{AnswerID: 103, AssignmentID: 12, StudentID: 2, StudentName: "张三", AnswerStatus: "NotSubmitted"},
		},
		feedbacks: []feedback{
			{FeedbackID: 201, AssignmentID: 11, StudentID: 2, StudentName: "张三",
				FeedbackContent: "第三题是否需要证明？", ReplyContent: "需要", PublishTime: "2024-09-12 10:00"},
		},
		resources: []resource{
			{ResourceID: 301, CourseID: 1, ResourceName: "第一章讲义.pdf", ResourceType: "pdf", UploadTime: "2024-09-01 09:00"},
		},
	}
	return s
}

func (s *store) userByPhone(phone string) *User {
	for _, u := range s.users {
		if u.PhoneNumber == phone {
			return u
		}
	}
	return nil
}

func (s *store) userByID(id string) *User {
	for _, u := range s.users {
		if strconv.Itoa(u.UserID) == id {
			return u
		}
	}
	return nil
}

func (s *store) courseByID(id int) (course, bool) {
	i := slices.IndexFunc(s.courses, func(c course) bool { return c.CourseID == id })
	if i < 0 {
		return course{}, false
	}
	return s.courses[i], true
}

func (s *store) assignmentByID(id int) (assignment, bool) {
	i := slices.IndexFunc(s.assignments, func(a assignment) bool { return a.AssignmentID == id })
	if i < 0 {
		return assignment{}, false
	}
	return s.assignments[i], true
}

// withCourseName fills the denormalized course name the real backend returns.
func (s *store) withCourseName(a assignment) assignment {
	if c, ok := s.courseByID(a.CourseID); ok {
		a.CourseName = c.CourseName
	}
	return a
}

func (s *store) decorateAnswer(a answer) answer {
	if as, ok := s.assignmentByID(a.AssignmentID); ok {
		a.AssignmentTitle = as.AssignmentTitle
		a.CourseName = s.withCourseName(as).CourseName
	}
	return a
}

func (s *store) allocID() int {
	s.nextID++
	return s.nextID
}

func atoi(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return n, nil
}
