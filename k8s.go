package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const serviceAccountDir = "/var/run/secrets/kubernetes.io/serviceaccount"

// K8sClient provides in-cluster Kubernetes API access.
type K8sClient struct {
	namespace string
	apiBase   string
	tokenPath string
	client    *http.Client
}

func NewK8sClient(namespace string) *K8sClient {
	return &K8sClient{
		namespace: namespace,
		apiBase:   inClusterAPIBase(),
		tokenPath: serviceAccountDir + "/token",
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// FindPod returns the name of the first pod matching labelSelector.
func (k *K8sClient) FindPod(ctx context.Context, labelSelector string) (string, error) {
	q := url.Values{"labelSelector": {labelSelector}, "limit": {"1"}}
	resp, err := k.get(ctx, fmt.Sprintf("/api/v1/namespaces/%s/pods?%s", k.namespace, q.Encode()))
	if err != nil {
		return "", fmt.Errorf("list pods: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Items []struct {
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode pod list: %w", err)
	}
	if len(result.Items) == 0 {
		return "", fmt.Errorf("no pods found with label %s", labelSelector)
	}
	return result.Items[0].Metadata.Name, nil
}

// StreamLogs follows a pod's log with RFC 3339 timestamps on every line.
// A zero since starts a few seconds back. container may be empty for
// single-container pods.
func (k *K8sClient) StreamLogs(ctx context.Context, podName, container string, since time.Time) (io.ReadCloser, error) {
	q := url.Values{"follow": {"true"}, "timestamps": {"true"}}
	if since.IsZero() {
		q.Set("sinceSeconds", "10")
	} else {
		q.Set("sinceTime", since.UTC().Format(time.RFC3339))
	}
	if container != "" {
		q.Set("container", container)
	}
	resp, err := k.get(ctx, fmt.Sprintf("/api/v1/namespaces/%s/pods/%s/log?%s", k.namespace, podName, q.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stream logs: %w", err)
	}
	return resp.Body, nil
}

func (k *K8sClient) get(ctx context.Context, path string) (*http.Response, error) {
	token, err := os.ReadFile(k.tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read sa token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+string(token))

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s", resp.Status, string(body))
	}
	return resp, nil
}

func inClusterAPIBase() string {
	host := os.Getenv("KUBERNETES_SERVICE_HOST")
	port := os.Getenv("KUBERNETES_SERVICE_PORT")
	if host == "" || port == "" {
		return "https://kubernetes.default.svc"
	}
	return fmt.Sprintf("https://%s:%s", host, port)
}

// PodLogSource streams the console of the server pod. Reopening the same
// pod resumes after the last line read.
type PodLogSource struct {
	k8s       *K8sClient
	podLabel  string
	container string
	lastPod   string
	lastLine  time.Time
}

func NewPodLogSource(k8s *K8sClient, podLabel, container string) *PodLogSource {
	return &PodLogSource{k8s: k8s, podLabel: podLabel, container: container}
}

func (s *PodLogSource) Name() string {
	if s.lastPod == "" {
		return "pod " + s.podLabel
	}
	return "pod " + s.k8s.namespace + "/" + s.lastPod
}

func (s *PodLogSource) Open(ctx context.Context) (io.ReadCloser, error) {
	podName, err := s.k8s.FindPod(ctx, s.podLabel)
	if err != nil {
		return nil, fmt.Errorf("find pod: %w", err)
	}
	if podName != s.lastPod {
		s.lastPod = podName
		s.lastLine = time.Time{}
	}
	body, err := s.k8s.StreamLogs(ctx, podName, s.container, s.lastLine)
	if err != nil {
		return nil, err
	}
	return &podLogReader{src: s, body: body, br: bufio.NewReader(body), after: s.lastLine}, nil
}

// podLogReader strips the timestamp prefix from each line. sinceTime is
// whole seconds, so lines at or before after are dropped.
type podLogReader struct {
	src   *PodLogSource
	body  io.ReadCloser
	br    *bufio.Reader
	after time.Time
	buf   []byte
}

func (r *podLogReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		line, err := r.br.ReadBytes('\n')
		if len(line) > 0 {
			r.buf = r.strip(line)
		}
		if err != nil && len(r.buf) == 0 {
			return 0, err
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *podLogReader) strip(line []byte) []byte {
	stamp, rest, ok := bytes.Cut(line, []byte{' '})
	if !ok {
		return line
	}
	ts, err := time.Parse(time.RFC3339Nano, string(stamp))
	if err != nil {
		return line
	}
	if !r.after.IsZero() && !ts.After(r.after) {
		return nil
	}
	if bytes.HasSuffix(rest, []byte{'\n'}) {
		r.src.lastLine = ts
	}
	return rest
}

func (r *podLogReader) Close() error { return r.body.Close() }
