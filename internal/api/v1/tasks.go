package v1

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xpchen/hogprice-insight-sub000/internal/importer"
)

// 轮询端最多回看的事件条数，再早的事件被丢弃
const taskEventWindow = 200

// Task 一次异步导入任务。上传接口立即返回任务 id，
// 进度既可以轮询也可以通过 SSE 订阅。
type Task struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // running/done/error
	File      string    `json:"file"`
	Sheet     string    `json:"sheet,omitempty"`
	Message   string    `json:"message,omitempty"`
	BatchIDs  []int64   `json:"batchIds,omitempty"`
	Report    any       `json:"report,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	events []importer.ProgressEvent
	seq    int // events[0] 的全局序号
}

type taskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[string]*Task)}
}

// start 登记新任务并启动消费协程，把进度通道镜像进任务状态
func (r *taskRegistry) start(filename string, events <-chan importer.ProgressEvent) *Task {
	t := &Task{
		ID:        uuid.New().String(),
		Status:    "running",
		File:      filename,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	go func() {
		for ev := range events {
			r.apply(t.ID, ev)
		}
		r.finish(t.ID)
	}()
	return t
}

func (r *taskRegistry) apply(id string, ev importer.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return
	}
	t.UpdatedAt = time.Now()
	t.Message = ev.Message
	if ev.Sheet != "" {
		t.Sheet = ev.Sheet
	}
	if ev.BatchID > 0 && (len(t.BatchIDs) == 0 || t.BatchIDs[len(t.BatchIDs)-1] != ev.BatchID) {
		t.BatchIDs = append(t.BatchIDs, ev.BatchID)
	}
	switch ev.Type {
	case "done":
		t.Status = "done"
		t.Report = ev.Report
	case "error":
		t.Status = "error"
	}
	t.events = append(t.events, ev)
	if len(t.events) > taskEventWindow {
		drop := len(t.events) - taskEventWindow
		t.events = t.events[drop:]
		t.seq += drop
	}
}

// finish 通道关闭后兜底：没有收到终态事件的任务按 error 收口
func (r *taskRegistry) finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return
	}
	if t.Status == "running" {
		t.Status = "error"
		t.Message = "任务异常结束"
	}
	t.UpdatedAt = time.Now()
}

// get 返回任务快照和 since 之后的事件（since 为全局序号）
func (r *taskRegistry) get(id string, since int) (*Task, []importer.ProgressEvent, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil, 0, false
	}
	snapshot := *t
	snapshot.events = nil

	next := t.seq + len(t.events)
	if since < t.seq {
		since = t.seq
	}
	var tail []importer.ProgressEvent
	if since < next {
		tail = append(tail, t.events[since-t.seq:]...)
	}
	return &snapshot, tail, next, true
}
