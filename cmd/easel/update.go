package main

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func runUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	skipVerify := fs.Bool("skip-verify", false, "skip SHA-256 checksum verification")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	fmt.Printf("Current version: %s\n", version)

	release, err := fetchLatestRelease()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot check GitHub releases: %v\n", err)
		fallbackGoInstall()
		return
	}
	if release == nil {
		fmt.Println("No GitHub releases found")
		fallbackGoInstall()
		return
	}

	if version != "dev" && !isNewer(release.TagName, version) {
		fmt.Printf("Already up to date (%s)\n", version)
		return
	}
	fmt.Printf("New version available: %s\n", release.TagName)

	asset := findAsset(release)
	if asset == nil {
		fmt.Fprintf(os.Stderr, "No binary for %s/%s, ", runtime.GOOS, runtime.GOARCH)
		fallbackGoInstall()
		return
	}

	var expectedHash string
	if !*skipVerify {
		expectedHash = loadExpectedChecksum(release, asset.Name)
	}

	selfPath, err := os.Executable()
	if err != nil {
		fatalf("cannot determine executable path: %v", err)
	}
	selfPath, err = filepath.EvalSymlinks(selfPath)
	if err != nil {
		fatalf("cannot resolve executable path: %v", err)
	}

	fmt.Printf("Downloading %s...\n", asset.Name)
	binPath, tmpDir, err := downloadVerifyAndExtract(asset.BrowserDownloadURL, expectedHash)
	if err != nil {
		fatalf("download failed: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := replaceBinary(selfPath, binPath); err != nil {
		fatalf("cannot replace binary: %v", err)
	}
	fmt.Printf("Updated to %s\n", release.TagName)

	stopIfRunning()
}

// --- GitHub API types ---

type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

func fetchLatestRelease() (*githubRelease, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get("https://api.github.com/repos/easelkit/easel/releases/latest")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}
	return &release, nil
}

// --- Version comparison ---

func isNewer(remote, local string) bool {
	if local == "dev" {
		return true
	}
	// A git-describe suffix (e.g. "v1.0.0-3-gabcdef") means a local build;
	// always offer the release.
	localClean := strings.TrimPrefix(local, "v")
	if strings.Count(localClean, "-") > 0 {
		return true
	}
	return compareSemver(remote, local) > 0
}

func compareSemver(a, b string) int {
	ap := semverParts(a)
	bp := semverParts(b)
	for i := 0; i < 3; i++ {
		if ap[i] > bp[i] {
			return 1
		}
		if ap[i] < bp[i] {
			return -1
		}
	}
	return 0
}

func semverParts(v string) [3]int {
	v = strings.TrimPrefix(v, "v")
	parts := strings.SplitN(v, ".", 3)
	var result [3]int
	for i, p := range parts {
		if i >= 3 {
			break
		}
		p, _, _ = strings.Cut(p, "-")
		result[i], _ = strconv.Atoi(p)
	}
	return result
}

// --- Asset matching ---

func findAsset(release *githubRelease) *githubAsset {
	name, err := releaseAssetName()
	if err != nil {
		return nil
	}
	for i := range release.Assets {
		if release.Assets[i].Name == name {
			return &release.Assets[i]
		}
	}
	return nil
}

func releaseAssetName() (string, error) {
	osName := ""
	switch runtime.GOOS {
	case "darwin":
		osName = "Darwin"
	case "linux":
		osName = "Linux"
	default:
		return "", fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}

	archName := ""
	switch runtime.GOARCH {
	case "amd64":
		archName = "x86_64"
	case "arm64":
		archName = "arm64"
	default:
		return "", fmt.Errorf("unsupported arch: %s", runtime.GOARCH)
	}

	return fmt.Sprintf("easel_%s_%s.tar.gz", osName, archName), nil
}

// --- Checksum helpers ---

// loadExpectedChecksum fetches checksums.txt from the release and returns
// the expected SHA-256 for assetName. Returns "" when the release carries
// no checksum entry so old releases keep working unverified.
func loadExpectedChecksum(release *githubRelease, assetName string) string {
	csAsset := findChecksumAsset(release)
	if csAsset == nil {
		fmt.Fprintln(os.Stderr, "Warning: release has no checksums.txt, skipping verification")
		return ""
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(csAsset.BrowserDownloadURL) //nolint:gosec // trusted GitHub release URL
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot download checksums.txt: %v, skipping verification\n", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Warning: checksums.txt returned %d, skipping verification\n", resp.StatusCode)
		return ""
	}

	checksums, err := parseChecksumFile(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot parse checksums.txt: %v, skipping verification\n", err)
		return ""
	}

	hash, ok := checksums[assetName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Warning: no checksum for %s in checksums.txt, skipping verification\n", assetName)
		return ""
	}
	return hash
}

func findChecksumAsset(release *githubRelease) *githubAsset {
	for i := range release.Assets {
		if release.Assets[i].Name == "checksums.txt" {
			return &release.Assets[i]
		}
	}
	return nil
}

// --- Download + Verify + Replace ---

func downloadVerifyAndExtract(url, expectedHash string) (binPath, tmpDir string, err error) {
	tmpDir, err = os.MkdirTemp("", "easel-update-*")
	if err != nil {
		return "", "", err
	}

	client := &http.Client{Timeout: 120 * time.Second}
	archivePath, err := downloadToTempFile(url, tmpDir, client)
	if err != nil {
		os.RemoveAll(tmpDir)
		return "", "", err
	}

	if expectedHash != "" {
		actual, err := sha256File(archivePath)
		if err != nil {
			os.RemoveAll(tmpDir)
			return "", "", fmt.Errorf("computing checksum: %w", err)
		}
		if actual != expectedHash {
			os.RemoveAll(tmpDir)
			return "", "", fmt.Errorf("checksum mismatch: expected %s, got %s", expectedHash, actual)
		}
		fmt.Println("Checksum verified")
	}

	f, err := os.Open(archivePath)
	if err != nil {
		os.RemoveAll(tmpDir)
		return "", "", err
	}
	defer f.Close()

	if err := extractTarGz(f, tmpDir, "easel"); err != nil {
		os.RemoveAll(tmpDir)
		return "", "", err
	}

	binPath = filepath.Join(tmpDir, "easel")
	if err := os.Chmod(binPath, 0o755); err != nil {
		os.RemoveAll(tmpDir)
		return "", "", err
	}

	return binPath, tmpDir, nil
}

// extractTarGz extracts a specific file from a tar.gz archive into destDir.
func extractTarGz(r io.Reader, destDir, targetName string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("file %q not found in archive", targetName)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		// Match by base name (archive may include directory prefix).
		if filepath.Base(hdr.Name) != targetName {
			continue
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		destPath := filepath.Join(destDir, targetName)
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // bounded by tar header size
			f.Close()
			return fmt.Errorf("write %s: %w", destPath, err)
		}
		return f.Close()
	}
}

func replaceBinary(selfPath, newPath string) error {
	// Rename is atomic on Unix even while the old binary is running.
	if err := os.Rename(newPath, selfPath); err == nil {
		return nil
	}
	// Cross-filesystem fallback: copy over.
	src, err := os.Open(newPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(selfPath, os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// --- Restart / fallback ---

func stopIfRunning() {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		fmt.Println("Run `easel serve` to start the server")
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		fmt.Println("Run `easel serve` to start the server")
		return
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Println("Run `easel serve` to start the server")
		return
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		fmt.Println("Run `easel serve` to start the server")
		return
	}

	fmt.Printf("Stopping running server (PID %d)...\n", pid)
	_ = proc.Signal(syscall.SIGTERM)

	// Wait for exit (up to 10s).
	for i := 0; i < 100; i++ {
		time.Sleep(100 * time.Millisecond)
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			break
		}
	}

	fmt.Println("Run `easel serve` to start the updated server")
}

func fallbackGoInstall() {
	goPath, err := exec.LookPath("go")
	if err != nil {
		fmt.Fprintln(os.Stderr, "No GitHub releases and `go` not in PATH, cannot update")
		os.Exit(1)
	}

	fmt.Println("Falling back to: go install github.com/easelkit/easel/cmd/easel@latest")
	cmd := exec.Command(goPath, "install", "github.com/easelkit/easel/cmd/easel@latest")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fatalf("go install failed: %v", err)
	}

	fmt.Println("Updated via go install")
	stopIfRunning()
}
