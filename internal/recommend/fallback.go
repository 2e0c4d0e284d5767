package recommend

import (
	"fmt"
	"strings"

	"github.com/yildizm/logsift/internal/common"
)

type fallbackAdvice struct {
	keywords []string
	score    float64
	text     string // formatted with the record source
}

var fallbackAdvices = []fallbackAdvice{
	{
		keywords: []string{"connection", "refused", "timeout", "network"},
		score:    0.8,
		text:     "Network connectivity issue detected in %s. The service or network connection is unavailable. Check if the target service is running with 'systemctl status servicename', verify network connectivity with ping, and check firewall rules. To prevent this, implement connection pooling and monitoring alerts for service availability.",
	},
	{
		keywords: []string{"memory", "out of memory", "oom"},
		score:    0.85,
		text:     "Memory issue detected in %s. The system is running out of available memory. Check current memory usage with 'free -h' and 'top', identify memory-heavy processes, and restart the affected service. To prevent this, monitor memory usage and consider increasing allocated memory or optimizing the application.",
	},
	{
		keywords: []string{"file", "not found", "no such file", "missing"},
		score:    0.75,
		text:     "File system issue in %s. Required files are missing or inaccessible. Check if the file exists with 'ls -la filepath', verify permissions with 'stat filepath', and restore from backup if needed. To prevent this, implement regular backups and file integrity monitoring.",
	},
	{
		keywords: []string{"auth", "permission", "denied", "forbidden", "unauthorized"},
		score:    0.7,
		text:     "Authentication or permission issue in %s. Access is being denied due to insufficient privileges or invalid credentials. Check user permissions with 'id username', verify file permissions with 'ls -la', and update access controls as needed. To prevent this, regularly audit permissions and implement proper role-based access control.",
	},
}

// Fallback produces keyword-based advice for a record when the LLM cannot
// be used
func Fallback(record common.Record) (string, float64) {
	combined := strings.ToLower(record.Message) + " " + strings.ToLower(record.Problem)
	for _, advice := range fallbackAdvices {
		for _, kw := range advice.keywords {
			if strings.Contains(combined, kw) {
				return fmt.Sprintf(advice.text, record.Source), advice.score
			}
		}
	}
	return fmt.Sprintf("System issue detected in %s with %s severity. Check system logs with 'journalctl -xe', verify service status with 'systemctl status', and monitor system resources with 'top' and 'df -h'. To prevent similar issues, implement comprehensive monitoring and regular health checks.",
		record.Source, record.Level), DefaultRelevance
}
