package scan

import (
	"fmt"
	"regexp"
	"strings"
)

// The detector tables are ordered configuration: each detector is an
// ordered list of (pattern, severity, description) entries evaluated in
// declaration order. Matching is purely textual; semantically equivalent
// constructs that do not match the literal pattern are out of scope for
// this layer (the semantic analyzer covers those).

// credentialPattern flags string literals that look like embedded API
// keys, tokens, or passwords.
type credentialPattern struct {
	re   *regexp.Regexp
	desc string
}

var credentialPatterns = []credentialPattern{
	{regexp.MustCompile(`(?i)["']sk-[a-zA-Z0-9]{20,}["']`), "API key (sk-...)"},
	{regexp.MustCompile(`(?i)["']pk-[a-zA-Z0-9]{20,}["']`), "API key (pk-...)"},
	{regexp.MustCompile(`(?i)["']ghp_[a-zA-Z0-9]{36,}["']`), "GitHub token"},
	{regexp.MustCompile(`(?i)["']xox[baprs]-[a-zA-Z0-9-]{10,}["']`), "Slack token"},
	{regexp.MustCompile(`(?i)password\s*[=:]\s*["'][^"']{8,}["']`), "Hardcoded password"},
	{regexp.MustCompile(`(?i)secret\s*[=:]\s*["'][^"']{8,}["']`), "Hardcoded secret"},
	{regexp.MustCompile(`(?i)["']AKIA[A-Z0-9]{16}["']`), "AWS Access Key"},
}

// exfiltrationPattern flags code that ships sensitive data to external
// hosts. Patterns that capture a URL (urlGroup > 0) are post-filtered so
// loopback targets do not fire.
type exfiltrationPattern struct {
	re       *regexp.Regexp
	desc     string
	urlGroup int
}

var exfiltrationPatterns = []exfiltrationPattern{
	{regexp.MustCompile(`(?is)fetch\s*\(\s*["']https?://([^"']+)["'].*?(memory|credential|secret|token|key|password)`), "fetch() with sensitive data", 1},
	{regexp.MustCompile(`(?is)axios\.(post|put)\s*\(\s*["']https?://([^"']+)["'].*?(memory|credential|secret)`), "axios POST with sensitive data", 2},
	{regexp.MustCompile(`(?is)requests\.(post|put)\s*\(\s*["']https?://([^"']+)["'].*?(memory|credential|secret)`), "requests POST with sensitive data", 2},
	{regexp.MustCompile(`(?is)(agent|bot)\.(memory|credentials|secrets).*?(fetch|axios|requests|http)`), "Agent data sent externally", 0},
}

// rcePattern flags dynamic code evaluation, especially with external input.
type rcePattern struct {
	re   *regexp.Regexp
	desc string
}

var rcePatterns = []rcePattern{
	{regexp.MustCompile(`(?i)\beval\s*\([^)]*\b(input|request|body|query|params|user)`), "eval() with user input"},
	{regexp.MustCompile(`(?i)\beval\s*\(\s*[a-zA-Z_][a-zA-Z0-9_]*\s*\)`), "eval() with variable"},
	{regexp.MustCompile(`(?i)Function\s*\([^)]*\)\s*\(`), "Function constructor"},
	{regexp.MustCompile(`(?i)subprocess\.(run|call|Popen)\s*\([^)]*\b(input|request|user)`), "subprocess with user input"},
	{regexp.MustCompile(`(?i)os\.system\s*\(`), "os.system call"},
}

// privEscPattern flags access to system resources outside a skill's
// normal scope.
type privEscPattern struct {
	re   *regexp.Regexp
	desc string
}

var privEscPatterns = []privEscPattern{
	{regexp.MustCompile(`(?i)os\.(system|popen|spawn)`), "OS command execution"},
	{regexp.MustCompile(`(?i)fs\.(readFile|writeFile|unlink|rmdir)\s*\(\s*["']/`), "Filesystem access to root"},
	{regexp.MustCompile(`(?i)open\s*\(\s*["']/(etc|var|usr|root)`), "Access to system directories"},
	{regexp.MustCompile(`(?i)process\.env\b`), "Environment variable access"},
	{regexp.MustCompile(`(?i)__import__\s*\(`), "Dynamic import"},
}

// envSecretPattern flags secrets exposed in env-style files. These are
// the one class where the snippet must never carry the matched value.
type envSecretPattern struct {
	re   *regexp.Regexp
	desc string
}

var envSecretPatterns = []envSecretPattern{
	{regexp.MustCompile(`(?i)(?:OPENAI|ANTHROPIC|DEEPSEEK)_API_KEY\s*=\s*["']?([^"'\s]+)`), "LLM API Key exposed"},
	{regexp.MustCompile(`(?i)AWS_SECRET_ACCESS_KEY\s*=\s*["']?([^"'\s]+)`), "AWS Secret Key exposed"},
	{regexp.MustCompile(`(?i)(?:DB|DATABASE)_PASSWORD\s*=\s*["']?([^"'\s]+)`), "Database password exposed"},
	{regexp.MustCompile(`(?i)(?:POSTGRES|MYSQL|MONGO).*PASSWORD\s*=\s*["']?([^"'\s]+)`), "Database password exposed"},
	{regexp.MustCompile(`(?i)SECRET_KEY\s*=\s*["']?([^"'\s]+)`), "Secret key exposed"},
	{regexp.MustCompile(`(?i)PRIVATE_KEY\s*=\s*["']?([^"'\s]+)`), "Private key exposed"},
	{regexp.MustCompile(`(?i)://[^:]+:([^@]+)@`), "Password in connection string"},
}

// dockerCheck flags insecure container configuration. Severity varies
// per check.
type dockerCheck struct {
	re       *regexp.Regexp
	severity Severity
	desc     string
}

var dockerChecks = []dockerCheck{
	{regexp.MustCompile(`(?i)privileged\s*:\s*true`), SeverityCritical, "Container running in privileged mode"},
	{regexp.MustCompile(`(?i)network_mode\s*:\s*["']?host`), SeverityHigh, "Container using host network mode"},
	{regexp.MustCompile(`(?i)pid\s*:\s*["']?host`), SeverityHigh, "Container sharing host PID namespace"},
	{regexp.MustCompile(`(?i)0\.0\.0\.0:\d+:\d+`), SeverityMedium, "Port exposed on all interfaces"},
	{regexp.MustCompile(`(?i)cap_add\s*:.*SYS_ADMIN`), SeverityCritical, "Container has SYS_ADMIN capability"},
	{regexp.MustCompile(`(?i)security_opt\s*:.*seccomp:unconfined`), SeverityHigh, "Seccomp disabled"},
	{regexp.MustCompile(`(?i)volumes\s*:.*/var/run/docker\.sock`), SeverityCritical, "Docker socket mounted in container"},
}

// LineNumber returns the 1-based line of a byte offset in content.
// Offsets past the end clamp to the last line.
func LineNumber(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}

// excerpt returns up to n characters of content starting at offset, with
// newlines flattened to spaces.
func excerpt(content string, offset, n int) string {
	end := offset + n
	if end > len(content) {
		end = len(content)
	}
	return strings.ReplaceAll(content[offset:end], "\n", " ")
}

// redactMatch keeps a short identifying prefix of a matched secret
// literal and masks the rest.
func redactMatch(match string) string {
	const keep = 12
	if len(match) <= keep {
		return match[:len(match)/2] + "***"
	}
	return match[:keep] + "***"
}

// isLoopbackTarget reports whether a captured URL points at the local
// host; exfiltration patterns skip those.
func isLoopbackTarget(url string) bool {
	return strings.HasPrefix(url, "localhost") || strings.HasPrefix(url, "127.0.0.1")
}

// DetectHardcodedCredentials finds embedded API keys, tokens, and
// passwords in code.
func DetectHardcodedCredentials(content, filename string) []Issue {
	var issues []Issue
	for _, p := range credentialPatterns {
		for _, loc := range p.re.FindAllStringIndex(content, -1) {
			issues = append(issues, Issue{
				Type:        TypeHardcodedCredentials,
				Severity:    SeverityHigh,
				Line:        LineNumber(content, loc[0]),
				Description: fmt.Sprintf("%s found in %s", p.desc, filename),
				Snippet:     redactMatch(content[loc[0]:loc[1]]),
			})
		}
	}
	return issues
}

// DetectExfiltration finds attempts to send sensitive data to external
// servers.
func DetectExfiltration(content, filename string) []Issue {
	var issues []Issue
	for _, p := range exfiltrationPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(content, -1) {
			if p.urlGroup > 0 {
				start, end := m[2*p.urlGroup], m[2*p.urlGroup+1]
				if start >= 0 && isLoopbackTarget(content[start:end]) {
					continue
				}
			}
			issues = append(issues, Issue{
				Type:        TypeExfiltration,
				Severity:    SeverityCritical,
				Line:        LineNumber(content, m[0]),
				Description: fmt.Sprintf("Potential data exfiltration: %s", p.desc),
				Snippet:     excerpt(content, m[0], 80),
			})
		}
	}
	return issues
}

// DetectRemoteCodeExecution finds dynamic code evaluation constructs.
func DetectRemoteCodeExecution(content, filename string) []Issue {
	var issues []Issue
	for _, p := range rcePatterns {
		for _, loc := range p.re.FindAllStringIndex(content, -1) {
			issues = append(issues, Issue{
				Type:        TypeRemoteCodeExecution,
				Severity:    SeverityMedium,
				Line:        LineNumber(content, loc[0]),
				Description: fmt.Sprintf("Potential RCE: %s", p.desc),
				Snippet:     excerpt(content, loc[0], 60),
			})
		}
	}
	return issues
}

// DetectPrivilegeEscalation finds access to system resources outside a
// skill's normal scope.
func DetectPrivilegeEscalation(content, filename string) []Issue {
	var issues []Issue
	for _, p := range privEscPatterns {
		for _, loc := range p.re.FindAllStringIndex(content, -1) {
			issues = append(issues, Issue{
				Type:        TypePrivilegeEscalation,
				Severity:    SeverityMedium,
				Line:        LineNumber(content, loc[0]),
				Description: fmt.Sprintf("Potential privilege escalation: %s", p.desc),
				Snippet:     excerpt(content, loc[0], 50),
			})
		}
	}
	return issues
}

// DetectEnvSecrets finds exposed secrets in env-style files. It only
// runs when the filename indicates an environment file; the snippet
// shows only the key name followed by a masked placeholder.
func DetectEnvSecrets(content, filename string) []Issue {
	if !strings.HasSuffix(filename, ".env") && !strings.Contains(filename, ".env") {
		return nil
	}

	var issues []Issue
	for _, p := range envSecretPatterns {
		for _, loc := range p.re.FindAllStringIndex(content, -1) {
			raw := excerpt(content, loc[0], 30)
			key, _, _ := strings.Cut(raw, "=")
			issues = append(issues, Issue{
				Type:        TypeExposedSecret,
				Severity:    SeverityCritical,
				Line:        LineNumber(content, loc[0]),
				Description: p.desc,
				Snippet:     key + "=***",
			})
		}
	}
	return issues
}

// DetectDockerMisconfig finds insecure container configuration. It only
// runs when the filename indicates a compose file or Dockerfile.
func DetectDockerMisconfig(content, filename string) []Issue {
	lower := strings.ToLower(filename)
	if !strings.Contains(lower, "docker-compose") && !strings.Contains(lower, "dockerfile") {
		return nil
	}

	var issues []Issue
	for _, c := range dockerChecks {
		for _, loc := range c.re.FindAllStringIndex(content, -1) {
			issues = append(issues, Issue{
				Type:        TypeDockerMisconfig,
				Severity:    c.severity,
				Line:        LineNumber(content, loc[0]),
				Description: c.desc,
				Snippet:     content[loc[0]:loc[1]],
			})
		}
	}
	return issues
}

// detectors is the fixed, ordered detector set run on every file.
var detectors = []func(content, filename string) []Issue{
	DetectHardcodedCredentials,
	DetectExfiltration,
	DetectRemoteCodeExecution,
	DetectPrivilegeEscalation,
	DetectEnvSecrets,
	DetectDockerMisconfig,
}

// RunDetectors runs the full static detector set on one file and returns
// all findings in detector order. A panicking detector contributes no
// findings; the scan never aborts because one detector misbehaves.
func RunDetectors(content, filename string) []Issue {
	var issues []Issue
	for _, detect := range detectors {
		issues = append(issues, runDetector(detect, content, filename)...)
	}
	return issues
}

func runDetector(detect func(string, string) []Issue, content, filename string) (issues []Issue) {
	defer func() {
		if r := recover(); r != nil {
			issues = nil
		}
	}()
	return detect(content, filename)
}
