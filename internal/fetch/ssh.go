package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/xzsean666/marketfeed/internal/config"
	"golang.org/x/crypto/ssh"
)

// SSHSource fetches shards from a remote host over one shared,
// lazily-created SSH session, mirroring the "mutex-guarded option cell"
// pattern from the original SSH client: the first caller to need the
// connection creates it; later callers reuse the same handle.
type SSHSource struct {
	label  string
	cfg    config.SSHSourceConfig
	mu     sync.Mutex
	client *ssh.Client
	sftp   *sftp.Client
}

// NewSSHSource returns a Source for one configured SSH upstream, labeled
// "ssh-<index>-<host>" to match the job runner's source tags.
func NewSSHSource(index int, cfg config.SSHSourceConfig) *SSHSource {
	return &SSHSource{label: fmt.Sprintf("ssh-%d-%s", index, cfg.Host), cfg: cfg}
}

func (s *SSHSource) Label() string { return s.label }

func (s *SSHSource) connection() (*ssh.Client, *sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, s.sftp, nil
	}

	auth, err := s.authMethod()
	if err != nil {
		return nil, nil, err
	}
	port := s.cfg.Port
	if port == 0 {
		port = 22
	}
	clientCfg := &ssh.ClientConfig{
		User:            s.cfg.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}
	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, port), clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("ssh dial %s: %w", s.cfg.Host, err)
	}
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("sftp client %s: %w", s.cfg.Host, err)
	}

	s.client = client
	s.sftp = sftpClient
	return s.client, s.sftp, nil
}

func (s *SSHSource) authMethod() (ssh.AuthMethod, error) {
	if s.cfg.PrivateKeyPath != "" {
		key, err := os.ReadFile(s.cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}
	if s.cfg.Password != "" {
		return ssh.Password(s.cfg.Password), nil
	}
	return nil, fmt.Errorf("no authentication method configured for %s", s.cfg.Host)
}

func (s *SSHSource) runCommand(cmd string) (string, error) {
	client, _, err := s.connection()
	if err != nil {
		return "", err
	}
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout
	if err := session.Run(cmd); err != nil {
		return "", fmt.Errorf("run %q: %w", cmd, err)
	}
	return stdout.String(), nil
}

func (s *SSHSource) remoteDir(date time.Time) string {
	return path.Join(s.cfg.InputBasePath, dayDir(date))
}

func (s *SSHSource) List(ctx context.Context, date time.Time) ([]string, error) {
	out, err := s.runCommand(fmt.Sprintf("ls -1 %s", shellQuote(s.remoteDir(date))))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, ".jsonl") {
			names = append(names, line)
		}
	}
	return names, nil
}

// Fetch streams the remote file through a remote zstd compression step
// into a scratch path, pulls it over SFTP, decompresses it locally, then
// best-effort removes the remote scratch file — exactly the path the
// original SSH client uses to minimize bytes on the wire.
func (s *SSHSource) Fetch(ctx context.Context, date time.Time, name string) ([]byte, error) {
	remotePath := path.Join(s.remoteDir(date), name)
	scratchPath := remotePath + ".zst"

	compressCmd := fmt.Sprintf("zstd -q -f %s -o %s || cp %s %s",
		shellQuote(remotePath), shellQuote(scratchPath), shellQuote(remotePath), shellQuote(scratchPath))
	if _, err := s.runCommand(compressCmd); err != nil {
		return nil, fmt.Errorf("remote compress %s: %w", remotePath, err)
	}

	_, sftpClient, err := s.connection()
	if err != nil {
		return nil, err
	}
	remoteFile, err := sftpClient.Open(scratchPath)
	if err != nil {
		return nil, fmt.Errorf("sftp open %s: %w", scratchPath, err)
	}
	data, err := io.ReadAll(remoteFile)
	remoteFile.Close()
	if err != nil {
		return nil, fmt.Errorf("sftp read %s: %w", scratchPath, err)
	}

	// Best-effort remote cleanup; errors are ignored, matching the
	// original's "rm -f" fire-and-forget.
	_, _ = s.runCommand(fmt.Sprintf("rm -f %s", shellQuote(scratchPath)))

	decoded, err := DecompressIfNeeded(data)
	if err != nil {
		// The remote side may have fallen back to a plain cp, in which case
		// the bytes are not zstd-framed and DecompressIfNeeded passes them
		// through unchanged; a real decode error here is genuinely fatal.
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	return decoded, nil
}

// Close releases the shared SSH/SFTP session, if one was opened.
func (s *SSHSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sftp != nil {
		s.sftp.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func shellQuote(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}
