package sink

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "cryptocrawl/config"
	"cryptocrawl/logger"
	"cryptocrawl/models"
)

// parquetRecord is the on-disk row layout for archived envelopes. The raw
// payload rides along so downstream consumers can re-parse with full
// fidelity.
type parquetRecord struct {
	Exchange  string `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Market    string `parquet:"name=market, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol    string `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Pair      string `parquet:"name=pair, type=BYTE_ARRAY, convertedtype=UTF8"`
	MsgType   string `parquet:"name=msg_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64  `parquet:"name=timestamp, type=INT64"`
	Raw       string `parquet:"name=raw, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// memoryFile adapts a byte buffer to the parquet writer's file interface.
type memoryFile struct {
	buffer *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buffer: &bytes.Buffer{}}
}

func (m *memoryFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memoryFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memoryFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memoryFile) Read(b []byte) (int, error)                { return m.buffer.Read(b) }
func (m *memoryFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memoryFile) Close() error                              { return nil }
func (m *memoryFile) Bytes() []byte                             { return m.buffer.Bytes() }

// S3Sink buffers envelopes per exchange/market/type and flushes each buffer
// to S3 as one parquet object on an interval and on Stop.
type S3Sink struct {
	cfg    appconfig.S3Config
	client *s3.Client
	log    *logger.Log

	mu     sync.Mutex
	buffer map[string][]*models.Message

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewS3Sink(ctx context.Context, cfg appconfig.S3Config) (*S3Sink, error) {
	log := logger.GetLogger()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	sink := &S3Sink{
		cfg:    cfg,
		client: s3.NewFromConfig(awsCfg),
		log:    log,
		buffer: make(map[string][]*models.Message),
	}
	log.WithComponent("s3_sink").WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
	}).Info("s3 sink initialized")
	return sink, nil
}

// Start launches the flush worker. Stop flushes what remains.
func (s *S3Sink) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	interval := s.cfg.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.flush(context.Background(), "shutdown")
				return
			case <-ticker.C:
				s.flush(ctx, "interval")
			}
		}
	}()
}

func (s *S3Sink) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *S3Sink) Write(msg *models.Message) {
	key := fmt.Sprintf("%s|%s|%s", msg.Exchange, msg.Market, msg.MsgType)
	s.mu.Lock()
	s.buffer[key] = append(s.buffer[key], msg)
	s.mu.Unlock()
}

func (s *S3Sink) flush(ctx context.Context, reason string) {
	s.mu.Lock()
	buffers := s.buffer
	s.buffer = make(map[string][]*models.Message)
	s.mu.Unlock()

	if len(buffers) == 0 {
		return
	}
	log := s.log.WithComponent("s3_sink").WithFields(logger.Fields{
		"buffers": len(buffers),
		"reason":  reason,
	})
	log.Info("flushing buffers")

	for key, msgs := range buffers {
		if len(msgs) == 0 {
			continue
		}
		if err := s.uploadBatch(ctx, key, msgs); err != nil {
			log.WithError(err).WithFields(logger.Fields{"batch": key}).Error("failed to flush batch")
		}
	}
}

func (s *S3Sink) uploadBatch(ctx context.Context, key string, msgs []*models.Message) error {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) != 3 {
		return fmt.Errorf("malformed buffer key %q", key)
	}

	data, err := createParquet(msgs)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	objectKey := fmt.Sprintf("exchange=%s/market=%s/type=%s/%s/%s.parquet",
		parts[0], parts[1], parts[2], now.Format("2006-01-02"), uuid.New().String())
	if s.cfg.Prefix != "" {
		objectKey = strings.TrimSuffix(s.cfg.Prefix, "/") + "/" + objectKey
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectKey, err)
	}

	s.log.WithComponent("s3_sink").WithFields(logger.Fields{
		"key":     objectKey,
		"records": len(msgs),
		"bytes":   len(data),
	}).Info("batch uploaded")
	return nil
}

func createParquet(msgs []*models.Message) ([]byte, error) {
	fw := newMemoryFile()
	pw, err := writer.NewParquetWriter(fw, new(parquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, msg := range msgs {
		rec := parquetRecord{
			Exchange:  msg.Exchange,
			Market:    msg.Market.String(),
			Symbol:    msg.Symbol,
			Pair:      msg.Pair,
			MsgType:   msg.MsgType.String(),
			Timestamp: msg.Timestamp,
			Raw:       string(msg.Raw),
		}
		if err := pw.Write(rec); err != nil {
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return fw.Bytes(), nil
}
