//go:build ignore

// build.go - GroutFlow build system
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, web, analyzer, clean, test, release, package
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"groutflow/pkg/contracts"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

var (
	rootDir string
	distDir string
	webDir  string

	// Executable names (key = source dir under cmd/, value = output name)
	executables = map[string]string{
		"web":      "groutflow-web",
		"analyzer": "analyzer",
	}
)

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current directory: %v", err))
	}
	rootDir = cwd

	if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); os.IsNotExist(err) {
		panic(fmt.Sprintf("go.mod not found in %s. Run from the repository root.", rootDir))
	}

	distDir = filepath.Join(rootDir, "dist")
	webDir = filepath.Join(rootDir, "web")
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if runtime.GOOS == "windows" {
		enableWindowsColors()
	}

	printHeader()

	startTime := time.Now()

	switch *target {
	case "all":
		buildAll(*verbose)
	case "web":
		buildExecutable("web", *verbose)
	case "analyzer":
		buildExecutable("analyzer", *verbose)
	case "clean":
		clean(*verbose)
	case "test":
		runTests(*verbose)
	case "release":
		buildRelease(*verbose)
	case "package":
		createPackage(*verbose)
	default:
		showHelp()
		os.Exit(1)
	}

	duration := time.Since(startTime)
	printSuccess(fmt.Sprintf("Done in %s", duration.Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "        GroutFlow - Build System           " + colorReset)
	fmt.Println(colorCyan + "   Grout Injection Sensor Log Analysis     " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func enableWindowsColors() {
	cmd := exec.Command("cmd", "/c", "echo", "")
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Run()
}

// Build all components
func buildAll(verbose bool) {
	printInfo("Building all components...")

	clearLogs(verbose)

	if err := checkPrerequisites(); err != nil {
		printError(fmt.Sprintf("Prerequisites check failed: %v", err))
		os.Exit(1)
	}

	prepareDirectories(verbose)

	for name := range executables {
		buildExecutable(name, verbose)
	}

	copyWebAssets(verbose)
	copyConfigFiles(verbose)

	printSuccess("All components built successfully!")
}

// Build a specific executable into dist/
func buildExecutable(name string, verbose bool) {
	exeName, ok := executables[name]
	if !ok {
		printError(fmt.Sprintf("Unknown executable: %s", name))
		os.Exit(1)
	}

	printInfo(fmt.Sprintf("Building %s...", name))

	outputPath := filepath.Join(distDir, exeName+exeSuffix())
	sourcePath := "./cmd/" + name

	ldflags := fmt.Sprintf("-s -w -X groutflow/pkg/contracts.BuildTime=%s -X groutflow/pkg/contracts.GitCommit=%s -X groutflow/pkg/contracts.GitBranch=%s",
		time.Now().UTC().Format(time.RFC3339), gitOutput("rev-parse", "--short", "HEAD"), gitOutput("rev-parse", "--abbrev-ref", "HEAD"))

	args := []string{
		"build",
		"-ldflags", ldflags,
		"-o", outputPath,
		sourcePath,
	}
	if verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
	}

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir

	if verbose {
		fmt.Printf("Running from %s: go %s\n", rootDir, strings.Join(args, " "))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", filepath.Base(outputPath), sizeMB))
	}
}

// Clean build artifacts
func clean(verbose bool) {
	printInfo("Cleaning build artifacts and logs...")

	clearLogs(verbose)

	if err := cleanDir(distDir); err != nil && !os.IsNotExist(err) {
		printError(fmt.Sprintf("Failed to clean dist directory: %v", err))
	}

	printSuccess("Build artifacts cleaned")
}

// Run tests
func runTests(verbose bool) {
	printInfo("Running Go tests...")

	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}

	printSuccess("All tests passed")
}

// Build release version for the site laptops
func buildRelease(verbose bool) {
	printInfo("Building release version...")

	clean(verbose)

	// Rig laptops run Windows; the service is cross-compiled static.
	os.Setenv("CGO_ENABLED", "0")
	os.Setenv("GOOS", "windows")
	os.Setenv("GOARCH", "amd64")

	buildAll(verbose)

	writeStartScript(verbose)

	versionFile := filepath.Join(distDir, "VERSION.txt")
	content := fmt.Sprintf("GroutFlow v%s\nGrout Injection Sensor Log Analysis\nBuilt: %s\n",
		contracts.Version, time.Now().Format("2006-01-02 15:04:05"))
	os.WriteFile(versionFile, []byte(content), 0644)

	printSuccess("Release build completed")
}

// Create distribution package
func createPackage(verbose bool) {
	printInfo("Creating distribution package...")

	if _, err := os.Stat(filepath.Join(distDir, "groutflow-web.exe")); os.IsNotExist(err) {
		printWarning("No release build found, building now...")
		buildRelease(verbose)
	}

	packageName := fmt.Sprintf("GroutFlow-v%s", contracts.Version)
	packageDir := filepath.Join(rootDir, packageName)

	os.RemoveAll(packageDir)

	if err := copyDir(distDir, packageDir); err != nil {
		printError(fmt.Sprintf("Failed to create package: %v", err))
		os.Exit(1)
	}

	readme := filepath.Join(rootDir, "README.md")
	if _, err := os.Stat(readme); err == nil {
		copyFile(readme, filepath.Join(packageDir, "README.txt"))
	}

	zipName := packageName + ".zip"
	printInfo(fmt.Sprintf("Package created in %s", packageDir))
	printInfo(fmt.Sprintf("To create zip: powershell Compress-Archive -Path '%s' -DestinationPath '%s'", packageDir, zipName))

	printSuccess("Distribution package ready")
}

// Helper functions

func checkPrerequisites() error {
	if err := exec.Command("go", "version").Run(); err != nil {
		return fmt.Errorf("Go is not installed or not in PATH")
	}

	if _, err := os.Stat(filepath.Join(rootDir, "cmd")); os.IsNotExist(err) {
		return fmt.Errorf("cmd directory not found")
	}

	return nil
}

// targetGOOS is the OS being built for, honoring a GOOS override
func targetGOOS() string {
	if goos := os.Getenv("GOOS"); goos != "" {
		return goos
	}
	return runtime.GOOS
}

func exeSuffix() string {
	if targetGOOS() == "windows" {
		return ".exe"
	}
	return ""
}

// gitOutput runs a git subcommand and returns its trimmed output, or
// "unknown" when git is unavailable (source tarball builds)
func gitOutput(args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = rootDir
	out, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func prepareDirectories(verbose bool) {
	dirs := []string{
		distDir,
		filepath.Join(distDir, "data", "uploads"),
		filepath.Join(distDir, "data", "reports"),
		filepath.Join(distDir, "logs"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			printError(fmt.Sprintf("Failed to create directory %s: %v", dir, err))
		}
	}
}

// WebAssetSpec lists what the dashboard needs to start
type WebAssetSpec struct {
	RequiredFiles []string
}

var dashboardAssets = WebAssetSpec{
	RequiredFiles: []string{
		"index.html",
		filepath.Join("static", "app.js"),
		filepath.Join("static", "style.css"),
	},
}

// copyWebAssets ships the dashboard files next to the server binary
func copyWebAssets(verbose bool) {
	printInfo("Copying dashboard assets...")

	destDir := filepath.Join(distDir, "web")
	os.RemoveAll(destDir)

	if err := copyDir(webDir, destDir); err != nil {
		printError(fmt.Sprintf("Failed to copy dashboard assets: %v", err))
		os.Exit(1)
	}

	for _, file := range dashboardAssets.RequiredFiles {
		path := filepath.Join(destDir, file)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			printError(fmt.Sprintf("Dashboard asset missing after copy: %s", file))
			os.Exit(1)
		}
	}

	printSuccess("Dashboard assets copied")
}

func copyConfigFiles(verbose bool) {
	configs := map[string]string{
		"config.yaml.example": filepath.Join(distDir, "config.yaml.example"),
	}

	for src, dest := range configs {
		srcPath := filepath.Join(rootDir, src)
		if _, err := os.Stat(srcPath); err == nil {
			if err := copyFile(srcPath, dest); err != nil {
				printWarning(fmt.Sprintf("Failed to copy %s: %v", src, err))
			}
		}
	}
}

// writeStartScript drops a double-click launcher for the rig laptops
func writeStartScript(verbose bool) {
	startScript := filepath.Join(distDir, "start-server.bat")
	scriptContent := `@echo off
echo Starting GroutFlow...
cd /d "%~dp0"
groutflow-web.exe
pause
`
	if err := os.WriteFile(startScript, []byte(scriptContent), 0755); err != nil {
		printWarning("Failed to create server startup script")
	} else {
		printInfo("Created server startup script")
	}
}

func copyFile(src, dest string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	return os.WriteFile(dest, input, 0644)
}

func copyDir(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(dest, relPath)

		if info.IsDir() {
			return os.MkdirAll(destPath, 0755)
		}

		return copyFile(path, destPath)
	})
}

// Clear all log files
func clearLogs(verbose bool) {
	printInfo("Clearing log files...")

	logDirs := []string{
		filepath.Join(distDir, "logs"),
		filepath.Join(rootDir, "logs"),
	}

	for _, dir := range logDirs {
		if _, err := os.Stat(dir); err == nil {
			filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil
				}
				if !info.IsDir() && strings.HasSuffix(path, ".log") {
					if verbose {
						fmt.Printf("  Removing: %s\n", path)
					}
					os.Remove(path)
				}
				return nil
			})
		}
	}

	rootLogs, _ := filepath.Glob(filepath.Join(rootDir, "*.log"))
	for _, logFile := range rootLogs {
		if verbose {
			fmt.Printf("  Removing: %s\n", logFile)
		}
		os.Remove(logFile)
	}

	printSuccess("Log files cleared")
}

func cleanDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	names, err := d.Readdirnames(-1)
	if err != nil {
		return err
	}

	for _, name := range names {
		err = os.RemoveAll(filepath.Join(dir, name))
		if err != nil {
			return err
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all               Build all components (default)")
	fmt.Println("  web               Build the GroutFlow server")
	fmt.Println("  analyzer          Build the batch analyzer CLI")
	fmt.Println("  clean             Clean build artifacts")
	fmt.Println("  test              Run all tests")
	fmt.Println("  release           Build optimized Windows release")
	fmt.Println("  package           Create distribution package")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v                Verbose output")
}
