package writerbackends

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"path"
	"time"

	"equipix/logger"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const sftpDialTimeout = 10 * time.Second

// sftpTarget is the parsed accessInfo of an sftp destination.
type sftpTarget struct {
	addr      string
	remoteDir string
	config    *ssh.ClientConfig
}

// parseSFTPTarget validates accessInfo. Required: host, user, remoteDir and
// one of password or privateKey (base64 or PEM). Optional: port (22) and
// hostKey in authorized_keys format; without it any host key is accepted.
func parseSFTPTarget(accessInfo map[string]string) (*sftpTarget, error) {
	host, user, remoteDir := accessInfo["host"], accessInfo["user"], accessInfo["remoteDir"]
	if host == "" || user == "" || remoteDir == "" {
		return nil, errors.New("sftp: host, user and remoteDir are required")
	}
	port := accessInfo["port"]
	if port == "" {
		port = "22"
	}

	auth, err := sftpAuth(accessInfo["password"], accessInfo["privateKey"])
	if err != nil {
		return nil, err
	}
	hostKey, err := sftpHostKey(accessInfo["hostKey"])
	if err != nil {
		return nil, err
	}

	return &sftpTarget{
		addr:      net.JoinHostPort(host, port),
		remoteDir: remoteDir,
		config: &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{auth},
			HostKeyCallback: hostKey,
			Timeout:         sftpDialTimeout,
		},
	}, nil
}

// sftpAuth prefers the private key over the password.
func sftpAuth(password, privateKey string) (ssh.AuthMethod, error) {
	if privateKey == "" {
		if password == "" {
			return nil, errors.New("sftp: set password or privateKey")
		}
		return ssh.Password(password), nil
	}
	pem, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		pem = []byte(privateKey)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("sftp: parse private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

func sftpHostKey(authorized string) (ssh.HostKeyCallback, error) {
	if authorized == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(authorized))
	if err != nil {
		return nil, fmt.Errorf("sftp: parse host key: %w", err)
	}
	return ssh.FixedHostKey(pub), nil
}

// dial opens the ssh connection honouring ctx for the TCP part.
func (t *sftpTarget) dial(ctx context.Context) (*ssh.Client, error) {
	d := net.Dialer{Timeout: t.config.Timeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, t.addr, t.config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", t.addr, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// UploadToSFTPWithCreds writes the artifact below remoteDir on an SFTP
// server, creating missing directories.
func UploadToSFTPWithCreds(ctx context.Context, accessInfo map[string]string, a Artifact) error {
	target, err := parseSFTPTarget(accessInfo)
	if err != nil {
		return err
	}

	sshClient, err := target.dial(ctx)
	if err != nil {
		return err
	}
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer client.Close()

	remotePath := path.Join(target.remoteDir, a.Folder, a.Filename)
	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", path.Dir(remotePath), err)
	}

	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: create %s: %w", remotePath, err)
	}
	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		return fmt.Errorf("sftp: write %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sftp: close %s: %w", remotePath, err)
	}

	logger.Infof("Uploaded %s to %s", remotePath, target.addr)
	return nil
}
