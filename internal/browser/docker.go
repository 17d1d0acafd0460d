package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
)

const (
	devtoolsPort      = "9222/tcp"
	devtoolsReadyWait = 30 * time.Second
	devtoolsPollEvery = 250 * time.Millisecond
)

// Container is a Docker-provisioned headless Chrome. CI boxes without
// a local Chrome run the harness against one of these and connect via
// the remote allocator.
type Container struct {
	cli   *client.Client
	id    string
	name  string
	wsURL string
}

// StartContainer pulls image if needed, runs it with the DevTools port
// published on localhost, and waits until the DevTools endpoint
// answers. Callers must Stop the container when the run finishes.
func StartContainer(ctx context.Context, img string, hostPort int) (*Container, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	reader, err := cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", img, err)
	}
	// Pull progress must be drained or the pull stalls.
	_, _ = io.Copy(io.Discard, reader)
	_ = reader.Close()

	port := nat.Port(devtoolsPort)
	name := "scenic-chrome-" + uuid.NewString()[:8]
	created, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:        img,
			ExposedPorts: nat.PortSet{port: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(hostPort)}},
			},
		},
		nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("create browser container: %w", err)
	}

	c := &Container{cli: cli, id: created.ID, name: name}
	if err := cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = c.Stop(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("start browser container: %w", err)
	}

	wsURL, err := waitDevTools(ctx, hostPort)
	if err != nil {
		_ = c.Stop(context.WithoutCancel(ctx))
		return nil, err
	}
	c.wsURL = wsURL

	slog.Debug("browser container ready", "name", name, "devtools", wsURL)
	return c, nil
}

// DevToolsURL returns the ws:// endpoint for the remote allocator.
func (c *Container) DevToolsURL() string { return c.wsURL }

// Stop removes the container. Already-gone containers are not an error.
func (c *Container) Stop(ctx context.Context) error {
	if err := c.cli.ContainerRemove(ctx, c.id, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove browser container %s: %w", c.name, err)
	}
	return nil
}

// waitDevTools polls /json/version until Chrome reports its DevTools
// websocket URL.
func waitDevTools(ctx context.Context, hostPort int) (string, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d/json/version", hostPort)
	deadline := time.Now().Add(devtoolsReadyWait)
	ticker := time.NewTicker(devtoolsPollEvery)
	defer ticker.Stop()

	for {
		wsURL, err := readDevToolsURL(ctx, url)
		if err == nil {
			return wsURL, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("devtools endpoint not ready after %s: %w", devtoolsReadyWait, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func readDevToolsURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", err
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("no webSocketDebuggerUrl in version payload")
	}
	return version.WebSocketDebuggerURL, nil
}
