package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/taskchain/internal/logging"
	"github.com/arloliu/taskchain/internal/natsutil"
	"github.com/arloliu/taskchain/types"
)

// DefaultRequestTimeout bounds a single request when the caller's context has no deadline.
const DefaultRequestTimeout = 5 * time.Second

// ErrServiceFailure is returned when the remote side answered with an error.
var ErrServiceFailure = errors.New("task service returned an error")

// taskReply is the reply envelope of a task query.
type taskReply struct {
	Result types.TaskQueryResult `json:"result"`
	Error  string                `json:"error,omitempty"`
}

// userReply is the reply envelope of a user listing.
type userReply struct {
	Users []types.UserData `json:"users"`
	Error string           `json:"error,omitempty"`
}

// UsersSubject returns the subject on which users are served for a task subject.
func UsersSubject(subject string) string {
	return subject + ".users"
}

// NATSQuerier queries a task service over NATS request/reply.
//
// Each QueryTasks call publishes the JSON encoded TaskQuery on the subject and
// waits for a single reply. Transport errors are returned classified but not
// retried; the reader wraps them with ErrRemoteQuery.
type NATSQuerier struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

var _ types.TaskQuerier = (*NATSQuerier)(nil)

// NewNATSQuerier creates a NATS request/reply task querier.
//
// Parameters:
//   - nc: Connected NATS client
//   - subject: Request subject of the task service
//   - timeout: Per request timeout (DefaultRequestTimeout when <= 0)
//
// Returns:
//   - *NATSQuerier: Querier ready for use
//
// Example:
//
//	q := source.NewNATSQuerier(nc, "taskchain.tasks.query", 2*time.Second)
//	res, err := reader.New(q).ReadTasks(ctx, reader.ReadRequest{PageSize: 500})
func NewNATSQuerier(nc *nats.Conn, subject string, timeout time.Duration) *NATSQuerier {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &NATSQuerier{nc: nc, subject: subject, timeout: timeout}
}

// QueryTasks implements types.TaskQuerier.
func (q *NATSQuerier) QueryTasks(ctx context.Context, query types.TaskQuery) (types.TaskQueryResult, error) {
	data, err := json.Marshal(query)
	if err != nil {
		return types.TaskQueryResult{}, fmt.Errorf("encode task query: %w", err)
	}

	var reply taskReply
	if err := request(ctx, q.nc, q.subject, q.timeout, data, &reply); err != nil {
		return types.TaskQueryResult{}, err
	}
	if reply.Error != "" {
		return types.TaskQueryResult{}, fmt.Errorf("%w: %s", ErrServiceFailure, reply.Error)
	}

	return reply.Result, nil
}

// NATSUsers lists users through the users subject of a Responder.
type NATSUsers struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

var _ types.UserSource = (*NATSUsers)(nil)

// NewNATSUsers creates a user source for the given task subject.
func NewNATSUsers(nc *nats.Conn, subject string, timeout time.Duration) *NATSUsers {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &NATSUsers{nc: nc, subject: UsersSubject(subject), timeout: timeout}
}

// ListUsers implements types.UserSource.
func (u *NATSUsers) ListUsers(ctx context.Context) ([]types.UserData, error) {
	var reply userReply
	if err := request(ctx, u.nc, u.subject, u.timeout, nil, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServiceFailure, reply.Error)
	}

	return reply.Users, nil
}

func request(ctx context.Context, nc *nats.Conn, subject string, timeout time.Duration, data []byte, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	msg, err := nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return natsutil.Classify(fmt.Errorf("request %s: %w", subject, err))
	}

	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("decode reply from %s: %w", subject, err)
	}

	return nil
}

// Responder serves a TaskQuerier, and optionally a UserSource, over NATS request/reply.
//
// Requests are handled through a queue subscription, so several responders
// can share one subject.
type Responder struct {
	nc      *nats.Conn
	subject string
	queue   string
	querier types.TaskQuerier
	users   types.UserSource
	logger  types.Logger
	timeout time.Duration

	subs []*nats.Subscription
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithUsers also serves the given user source on UsersSubject(subject).
func WithUsers(users types.UserSource) ResponderOption {
	return func(r *Responder) {
		r.users = users
	}
}

// WithResponderLogger sets the responder logger.
func WithResponderLogger(l types.Logger) ResponderOption {
	return func(r *Responder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithQueue sets the queue group name (default "taskchain").
func WithQueue(queue string) ResponderOption {
	return func(r *Responder) {
		if queue != "" {
			r.queue = queue
		}
	}
}

// NewResponder creates a responder. Call Start to begin serving.
//
// Parameters:
//   - nc: Connected NATS client
//   - subject: Request subject to serve
//   - querier: Backing task service
//   - opts: Optional users, logger and queue group
//
// Returns:
//   - *Responder: Stopped responder
func NewResponder(nc *nats.Conn, subject string, querier types.TaskQuerier, opts ...ResponderOption) *Responder {
	r := &Responder{
		nc:      nc,
		subject: subject,
		queue:   "taskchain",
		querier: querier,
		logger:  logging.NewNop(),
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start subscribes to the request subjects.
//
// Returns:
//   - error: ErrAlreadyStarted or the subscription error
func (r *Responder) Start() error {
	if len(r.subs) > 0 {
		return types.ErrAlreadyStarted
	}

	sub, err := r.nc.QueueSubscribe(r.subject, r.queue, r.handleTasks)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.subject, err)
	}
	r.subs = append(r.subs, sub)

	if r.users != nil {
		usub, err := r.nc.QueueSubscribe(UsersSubject(r.subject), r.queue, r.handleUsers)
		if err != nil {
			_ = sub.Unsubscribe()
			r.subs = nil

			return fmt.Errorf("subscribe %s: %w", UsersSubject(r.subject), err)
		}
		r.subs = append(r.subs, usub)
	}

	// Make sure the server knows about the interest before callers send requests.
	return r.nc.Flush()
}

// Stop drains the subscriptions.
func (r *Responder) Stop() error {
	var errs []error
	for _, sub := range r.subs {
		if err := sub.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	r.subs = nil

	return errors.Join(errs...)
}

func (r *Responder) handleTasks(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var reply taskReply
	var query types.TaskQuery
	if err := json.Unmarshal(msg.Data, &query); err != nil {
		reply.Error = fmt.Sprintf("decode task query: %v", err)
	} else if res, err := r.querier.QueryTasks(ctx, query); err != nil {
		reply.Error = err.Error()
	} else {
		reply.Result = res
	}

	if reply.Error != "" {
		r.logger.Warn("task query failed", "subject", msg.Subject, "error", reply.Error)
	}
	r.respond(msg, reply)
}

func (r *Responder) handleUsers(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var reply userReply
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		reply.Error = err.Error()
		r.logger.Warn("user listing failed", "subject", msg.Subject, "error", err)
	} else {
		reply.Users = users
	}
	r.respond(msg, reply)
}

func (r *Responder) respond(msg *nats.Msg, reply any) {
	data, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("failed to encode reply", "subject", msg.Subject, "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		r.logger.Error("failed to send reply", "subject", msg.Subject, "error", err)
	}
}
