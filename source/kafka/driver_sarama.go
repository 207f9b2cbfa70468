package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"offstream/internal/logging"
)

func init() { Register("sarama", newSaramaClient) }

type saramaClient struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup
}

func newSaramaClient(cfg Config) (LogClient, error) {
	ver, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("kafka: version %q: %w", cfg.Version, err)
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	// offsets are committed to the coordination store by the source itself
	sc.Consumer.Offsets.AutoCommit.Enable = false
	if cfg.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if cfg.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = cfg.SASLUser, cfg.SASLPass
	}
	switch cfg.StartFrom {
	case "newest":
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	cl, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroupFromClient(cfg.GroupID, cl)
	if err != nil {
		_ = cl.Close()
		return nil, err
	}
	return &saramaClient{cfg: cfg, cl: cl, group: group}, nil
}

func (c *saramaClient) Partitions(_ context.Context, topic string) (int32, error) {
	parts, err := c.cl.Partitions(topic)
	if err != nil {
		return 0, err
	}
	return int32(len(parts)), nil
}

// OpenCursor funnels every claimed partition of the topic into one bounded
// channel, presenting the consumer group session as the single sequential
// stream the source expects. Per-partition order is preserved; interleaving
// across partitions is arbitrary.
func (c *saramaClient) OpenCursor(_ context.Context, topic string) (Cursor, error) {
	cur := &saramaCursor{
		recs: make(chan Record, c.cfg.FetchBuffer),
		errs: make(chan error, 1),
	}
	cctx, cancel := context.WithCancel(context.Background())
	cur.cancel = cancel

	go func() {
		defer close(cur.recs)
		handler := &streamHandler{topic: topic, out: cur.recs}
		for {
			if err := c.group.Consume(cctx, []string{topic}, handler); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case cur.errs <- err:
				default:
				}
				return
			}
			if cctx.Err() != nil {
				return
			}
			// rebalance: the next session may replay already-delivered
			// offsets; the source's stale-record filter discards them
		}
	}()
	return cur, nil
}

func (c *saramaClient) Close() error {
	return errors.Join(c.group.Close(), c.cl.Close())
}

type saramaCursor struct {
	recs      chan Record
	errs      chan error
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *saramaCursor) Next(ctx context.Context) (Record, error) {
	select {
	case rec, ok := <-c.recs:
		if !ok {
			select {
			case err := <-c.errs:
				return Record{}, err
			default:
				return Record{}, ErrCursorClosed
			}
		}
		return rec, nil
	case err := <-c.errs:
		return Record{}, err
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

func (c *saramaCursor) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}

type streamHandler struct {
	topic string
	out   chan<- Record
}

// Setup enforces the one-stream precondition: the session must claim exactly
// the configured topic. Anything else is a fatal configuration or
// environment error, not something to paper over.
func (h *streamHandler) Setup(sess sarama.ConsumerGroupSession) error {
	claims := sess.Claims()
	if len(claims) != 1 {
		return fmt.Errorf("kafka: expected a stream for exactly one topic but got %d", len(claims))
	}
	parts, ok := claims[h.topic]
	if !ok {
		return fmt.Errorf("kafka: requested stream for topic %q not assigned, claims: %v", h.topic, claims)
	}
	logging.L().Info("stream assigned", "topic", h.topic, "partitions", parts)
	return nil
}

func (*streamHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *streamHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			rec := Record{Partition: msg.Partition, Offset: msg.Offset, Payload: msg.Value}
			select {
			case h.out <- rec:
			case <-sess.Context().Done():
				return sess.Context().Err()
			}
		case <-sess.Context().Done():
			return sess.Context().Err()
		}
	}
}
