package workers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/camden-git/foodlens/intake"
	"github.com/camden-git/foodlens/nutrition"
)

var (
	ErrAlreadyPending = errors.New("recognition already pending for session")
	ErrQueueFull      = errors.New("recognition queue is full")
	ErrQueueStopped   = errors.New("recognition queue is stopped")
)

// RecognitionInput is what the recognizer sees of a session.
type RecognitionInput struct {
	SessionID string
	Image     intake.StagedImage
	Details   intake.ProductDetails
}

// Recognizer derives a product from a staged image. Implementations must
// return ctx.Err() promptly once ctx is cancelled.
type Recognizer interface {
	Recognize(ctx context.Context, in RecognitionInput) (nutrition.Product, error)
}

// RecognizedFields are the fields the mock recognizer always "reads" off
// the image.
func RecognizedFields() nutrition.ManualEntryFields {
	return nutrition.ManualEntryFields{
		ProductName:   "Sample Food Product",
		Calories:      "250",
		Protein:       "12",
		Carbohydrates: "0",
		Fat:           "0",
		Potassium:     "450",
		Sodium:        "0",
		Allergens:     []string{"Nuts", "Dairy"},
	}
}

// MockRecognizer waits Latency and then evaluates RecognizedFields with the
// staged image as product image.
type MockRecognizer struct {
	Latency   time.Duration
	Evaluator *nutrition.Evaluator
}

func NewMockRecognizer(latency time.Duration, evaluator *nutrition.Evaluator) *MockRecognizer {
	if evaluator == nil {
		evaluator = nutrition.NewEvaluator(nutrition.DefaultPolicy(), "")
	}
	return &MockRecognizer{Latency: latency, Evaluator: evaluator}
}

func (m *MockRecognizer) Recognize(ctx context.Context, in RecognitionInput) (nutrition.Product, error) {
	timer := time.NewTimer(m.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nutrition.Product{}, ctx.Err()
	case <-timer.C:
	}

	fields := RecognizedFields()
	if in.Image.Preview.URL != "" {
		fields.Images = []string{in.Image.Preview.URL}
	}
	product := m.Evaluator.Evaluate(fields)
	product.Source = nutrition.SourceRecognition
	return product, nil
}

// RecognitionJob is one queued recognition. OnDone runs on a worker
// goroutine exactly once, with ctx.Err() when the job was cancelled.
type RecognitionJob struct {
	Input  RecognitionInput
	OnDone func(product nutrition.Product, err error)
}

type queuedJob struct {
	job    RecognitionJob
	ctx    context.Context
	cancel context.CancelFunc
}

// RecognitionQueue runs recognition jobs on a fixed worker pool and allows
// at most one pending job per session.
type RecognitionQueue struct {
	JobQueue   chan *queuedJob
	Recognizer Recognizer
	Wg         sync.WaitGroup
	StopChan   chan struct{}
	Pending    map[string]*queuedJob
	Mutex      sync.Mutex
	stopped    bool
}

func NewRecognitionQueue(rec Recognizer, queueSize, numWorkers int) *RecognitionQueue {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	q := &RecognitionQueue{
		JobQueue:   make(chan *queuedJob, queueSize),
		Recognizer: rec,
		StopChan:   make(chan struct{}),
		Pending:    make(map[string]*queuedJob),
	}

	q.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go q.worker(i)
	}
	log.Printf("workers: started %d recognition worker(s) with queue size %d", numWorkers, queueSize)
	return q
}

func (q *RecognitionQueue) worker(id int) {
	defer q.Wg.Done()
	for {
		select {
		case qj := <-q.JobQueue:
			q.process(id, qj)
		case <-q.StopChan:
			return
		}
	}
}

func (q *RecognitionQueue) process(workerID int, qj *queuedJob) {
	sessionID := qj.job.Input.SessionID
	log.Printf("workers: worker %d recognizing image for session %s", workerID, sessionID)

	var (
		product nutrition.Product
		err     error
	)
	if err = qj.ctx.Err(); err == nil {
		product, err = q.Recognizer.Recognize(qj.ctx, qj.job.Input)
	}
	q.finish(qj, product, err)
}

// finish frees the session's slot before OnDone runs so the callback can
// already queue the next job.
func (q *RecognitionQueue) finish(qj *queuedJob, product nutrition.Product, err error) {
	sessionID := qj.job.Input.SessionID
	q.Mutex.Lock()
	if q.Pending[sessionID] == qj {
		delete(q.Pending, sessionID)
	}
	q.Mutex.Unlock()
	qj.cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("workers: recognition for session %s failed: %v", sessionID, err)
	}
	if qj.job.OnDone != nil {
		qj.job.OnDone(product, err)
	}
}

// Submit queues job without blocking.
func (q *RecognitionQueue) Submit(job RecognitionJob) error {
	sessionID := job.Input.SessionID

	q.Mutex.Lock()
	if q.stopped {
		q.Mutex.Unlock()
		return ErrQueueStopped
	}
	if _, ok := q.Pending[sessionID]; ok {
		q.Mutex.Unlock()
		return ErrAlreadyPending
	}
	ctx, cancel := context.WithCancel(context.Background())
	qj := &queuedJob{job: job, ctx: ctx, cancel: cancel}
	q.Pending[sessionID] = qj

	// sending under the lock keeps Stop from draining before the job lands
	select {
	case q.JobQueue <- qj:
		q.Mutex.Unlock()
		log.Printf("workers: queued recognition for session %s", sessionID)
		return nil
	default:
		delete(q.Pending, sessionID)
		q.Mutex.Unlock()
		cancel()
		log.Printf("workers: WARNING recognition queue full, dropped job for session %s", sessionID)
		return ErrQueueFull
	}
}

// Cancel cancels the session's pending job. Its OnDone still runs.
func (q *RecognitionQueue) Cancel(sessionID string) bool {
	q.Mutex.Lock()
	qj, ok := q.Pending[sessionID]
	q.Mutex.Unlock()
	if !ok {
		return false
	}
	qj.cancel()
	log.Printf("workers: cancelled recognition for session %s", sessionID)
	return true
}

func (q *RecognitionQueue) IsPending(sessionID string) bool {
	q.Mutex.Lock()
	defer q.Mutex.Unlock()
	_, ok := q.Pending[sessionID]
	return ok
}

// Stop cancels everything in flight, waits for the workers and finishes
// jobs that never started with context.Canceled.
func (q *RecognitionQueue) Stop() {
	log.Println("workers: stopping recognition queue...")
	q.Mutex.Lock()
	if q.stopped {
		q.Mutex.Unlock()
		return
	}
	q.stopped = true
	for _, qj := range q.Pending {
		qj.cancel()
	}
	q.Mutex.Unlock()

	close(q.StopChan)
	q.Wg.Wait()

	for {
		select {
		case qj := <-q.JobQueue:
			q.finish(qj, nutrition.Product{}, context.Canceled)
		default:
			log.Println("workers: all recognition workers stopped")
			return
		}
	}
}
