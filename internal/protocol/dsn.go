package protocol

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/eventrelay/relay/internal/basictypes"
)

// DSN is a client key URL of the form "{scheme}://{public_key}:@{host}:{port}/{project_id}".
type DSN struct {
	Scheme    string
	PublicKey basictypes.ProjectKey
	Host      string
	Port      int
	Path      string
	ProjectID basictypes.ProjectID
}

// ParseDSN parses a DSN. The port defaults to the scheme's default port.
func ParseDSN(s string) (DSN, error) {
	u, err := url.Parse(s)
	if err != nil {
		return DSN{}, DSNError{Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return DSN{}, DSNError{Reason: "unsupported scheme"}
	}
	if u.User == nil {
		return DSN{}, DSNError{Reason: "missing public key"}
	}
	key, err := basictypes.ParseProjectKey(u.User.Username())
	if err != nil {
		return DSN{}, DSNError{Reason: "invalid public key"}
	}
	if u.Hostname() == "" {
		return DSN{}, DSNError{Reason: "missing host"}
	}
	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return DSN{}, DSNError{Reason: "invalid port"}
		}
	}
	path := strings.Trim(u.Path, "/")
	projectPart := path
	prefix := ""
	if slash := strings.LastIndexByte(path, '/'); slash >= 0 {
		prefix, projectPart = path[:slash], path[slash+1:]
	}
	projectID, err := basictypes.ParseProjectID(projectPart)
	if err != nil {
		return DSN{}, DSNError{Reason: "invalid project id"}
	}
	return DSN{
		Scheme:    u.Scheme,
		PublicKey: key,
		Host:      u.Hostname(),
		Port:      port,
		Path:      prefix,
		ProjectID: projectID,
	}, nil
}

func (d DSN) String() string {
	path := ""
	if d.Path != "" {
		path = "/" + d.Path
	}
	return fmt.Sprintf("%s://%s:@%s:%d%s/%d", d.Scheme, d.PublicKey, d.Host, d.Port, path, d.ProjectID)
}
