package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultElasticIndex = "coldstart-reports"

type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	Index     string
}

// ElasticSink indexes a flattened copy of each report, keyed by run id.
type ElasticSink struct {
	client    *elasticsearch.Client
	indexName string
}

func NewElasticSink(ctx context.Context, cfg ElasticConfig) (*ElasticSink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	indexName := cfg.Index
	if indexName == "" {
		indexName = DefaultElasticIndex
	}
	sink := &ElasticSink{client: client, indexName: indexName}
	if err := sink.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	return sink, nil
}

func (s *ElasticSink) ensureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.indexName}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index existence: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := `{
		"mappings": {
			"properties": {
				"run_id": {"type": "keyword"},
				"analysis_timestamp": {"type": "date"},
				"environment": {"type": "keyword"},
				"namespace": {"type": "keyword"},
				"cluster_context": {"type": "keyword"},
				"no_data": {"type": "boolean"},
				"cycles": {
					"type": "nested",
					"properties": {
						"workload": {"type": "keyword"},
						"outcome": {"type": "keyword"},
						"reason": {"type": "text"},
						"poll_iterations": {"type": "integer"},
						"poll_errors": {"type": "integer"}
					}
				},
				"workloads": {
					"type": "nested",
					"properties": {
						"workload": {"type": "keyword"},
						"ready": {"type": "integer"},
						"timed_out": {"type": "integer"},
						"failed": {"type": "integer"},
						"scheduling_delay_ms_mean": {"type": "double"},
						"total_ready_time_ms_mean": {"type": "double"},
						"image_pull_and_creation_ms_mean": {"type": "double"},
						"application_startup_ms_mean": {"type": "double"}
					}
				}
			}
		}
	}`

	createRes, err := s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("create index: %s", createRes.Status())
	}
	return nil
}

func (s *ElasticSink) Save(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(toElasticDocument(doc))
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.indexName,
		DocumentID: doc.RunID,
		Body:       bytes.NewReader(data),
		Refresh:    "false",
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index report: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index report: %s", res.Status())
	}
	return nil
}

type elasticDocument struct {
	RunID             string            `json:"run_id"`
	AnalysisTimestamp time.Time         `json:"analysis_timestamp"`
	Environment       string            `json:"environment"`
	Namespace         string            `json:"namespace"`
	ClusterContext    string            `json:"cluster_context"`
	NoData            bool              `json:"no_data"`
	Cycles            []elasticCycle    `json:"cycles"`
	Workloads         []elasticWorkload `json:"workloads"`
}

type elasticCycle struct {
	Workload       string `json:"workload"`
	Outcome        string `json:"outcome"`
	Reason         string `json:"reason,omitempty"`
	PollIterations int    `json:"poll_iterations"`
	PollErrors     int    `json:"poll_errors"`
}

type elasticWorkload struct {
	Workload        string   `json:"workload"`
	Ready           int      `json:"ready"`
	TimedOut        int      `json:"timed_out"`
	Failed          int      `json:"failed"`
	SchedulingDelay *float64 `json:"scheduling_delay_ms_mean,omitempty"`
	TotalReady      *float64 `json:"total_ready_time_ms_mean,omitempty"`
	ImagePull       *float64 `json:"image_pull_and_creation_ms_mean,omitempty"`
	AppStartup      *float64 `json:"application_startup_ms_mean,omitempty"`
}

func toElasticDocument(doc *Document) *elasticDocument {
	cycles := make([]elasticCycle, 0, len(doc.Cycles))
	for _, c := range doc.Cycles {
		cycles = append(cycles, elasticCycle{
			Workload:       c.Workload,
			Outcome:        string(c.Outcome),
			Reason:         c.Reason,
			PollIterations: c.PollIterations,
			PollErrors:     c.PollErrors,
		})
	}
	workloads := make([]elasticWorkload, 0, len(doc.Statistics.Workloads))
	for _, w := range doc.Statistics.Workloads {
		workloads = append(workloads, elasticWorkload{
			Workload:        w.Workload,
			Ready:           w.Ready,
			TimedOut:        w.TimedOut,
			Failed:          w.Failed,
			SchedulingDelay: meanOf(w.SchedulingDelay),
			TotalReady:      meanOf(w.TotalReady),
			ImagePull:       meanOf(w.ImagePull),
			AppStartup:      meanOf(w.AppStartup),
		})
	}
	return &elasticDocument{
		RunID:             doc.RunID,
		AnalysisTimestamp: doc.AnalysisTimestamp,
		Environment:       doc.Environment,
		Namespace:         doc.Namespace,
		ClusterContext:    doc.Cluster.Context,
		NoData:            doc.Statistics.NoData,
		Cycles:            cycles,
		Workloads:         workloads,
	}
}

func meanOf(s *Stats) *float64 {
	if s == nil {
		return nil
	}
	mean := s.Mean
	return &mean
}
