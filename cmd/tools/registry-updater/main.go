// cmd/tools/registry-updater/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"delivery-estimator/internal/artifact"
	"delivery-estimator/internal/common/aws"
	httpclient "delivery-estimator/internal/common/http"
	"delivery-estimator/pkg/registry"
)

const defaultRegistryPath = "configs/model-registry.json"

// Uploader stores a published artifact.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
}

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	checksumCmd := flag.NewFlagSet("checksum", flag.ExitOnError)
	publishCmd := flag.NewFlagSet("publish", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Add command flags
	addPath := addCmd.String("path", defaultRegistryPath, "Path to registry file")
	nameAdd := addCmd.String("name", "", "Model name (e.g., delivery-time)")
	kind := addCmd.String("kind", "", "Model kind (delivery_time or courier_demand)")
	uri := addCmd.String("uri", "", "Artifact location (path, file://, http(s)://, s3://)")
	displayName := addCmd.String("displayName", "", "Display Name")
	version := addCmd.String("version", "1.0.0", "Model version")
	preload := addCmd.Bool("preload", true, "Load the model on service start")
	tags := addCmd.String("tags", "", "Comma-separated tags")
	noChecksum := addCmd.Bool("no-checksum", false, "Skip computing sha256 for local artifacts")

	// Update command flags
	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	nameUpdate := updateCmd.String("name", "", "Model name to update")
	field := updateCmd.String("field", "", "Field to update (displayName, kind, version, uri, sha256, preload, tags)")
	value := updateCmd.String("value", "", "New value for the field")

	// Checksum command flags
	checksumPath := checksumCmd.String("path", defaultRegistryPath, "Path to registry file")
	nameChecksum := checksumCmd.String("name", "", "Model name (empty for all)")
	region := checksumCmd.String("region", "us-east-1", "AWS region for s3:// artifacts")

	// Publish command flags
	publishPath := publishCmd.String("path", defaultRegistryPath, "Path to registry file")
	namePublish := publishCmd.String("name", "", "Model name to publish")
	file := publishCmd.String("file", "", "Local artifact bundle to upload")
	dest := publishCmd.String("dest", "", "Destination s3://bucket/key")
	publishVersion := publishCmd.String("version", "", "New model version (optional)")
	publishRegion := publishCmd.String("region", "us-east-1", "AWS region")
	endpoint := publishCmd.String("endpoint", "", "S3 endpoint override (e.g., http://localhost:4566)")

	// Validate command flags
	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to registry file")

	// List command flags
	listPath := listCmd.String("path", defaultRegistryPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *nameAdd == "" || *kind == "" || *uri == "" {
			fmt.Println("Error: name, kind, and uri are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		model := registry.Model{
			Name:        *nameAdd,
			DisplayName: *displayName,
			Kind:        *kind,
			Version:     *version,
			URI:         *uri,
			Preload:     *preload,
			Tags:        splitTags(*tags),
		}
		if err := addModel(*addPath, model, !*noChecksum); err != nil {
			fmt.Printf("Error adding model: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added model: %s\n", *nameAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *nameUpdate == "" || *field == "" {
			fmt.Println("Error: name and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateModel(*updatePath, *nameUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating model: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated model %s, field %s to %s\n", *nameUpdate, *field, *value)

	case "checksum":
		checksumCmd.Parse(os.Args[2:])
		deps := artifact.Deps{HTTP: httpclient.NewClient(30*time.Second, 2)}
		if s3c, err := aws.NewS3Client(ctx, *region, ""); err == nil {
			deps.S3 = s3c
		}
		updated, err := refreshChecksums(ctx, *checksumPath, *nameChecksum, deps)
		if err != nil {
			fmt.Printf("Error computing checksums: %v\n", err)
			os.Exit(1)
		}
		for _, name := range updated {
			fmt.Printf("Refreshed sha256 for %s\n", name)
		}

	case "publish":
		publishCmd.Parse(os.Args[2:])
		if *namePublish == "" || *file == "" || *dest == "" {
			fmt.Println("Error: name, file, and dest are required for publish.")
			publishCmd.Usage()
			os.Exit(1)
		}
		s3c, err := aws.NewS3Client(ctx, *publishRegion, *endpoint)
		if err != nil {
			fmt.Printf("Error creating S3 client: %v\n", err)
			os.Exit(1)
		}
		if err := publishModel(ctx, *publishPath, *namePublish, *file, *dest, *publishVersion, s3c); err != nil {
			fmt.Printf("Error publishing model: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Published %s to %s\n", *namePublish, *dest)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(*validatePath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry is valid.")

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listModels(*listPath, os.Stdout); err != nil {
			fmt.Printf("Error listing models: %v\n", err)
			os.Exit(1)
		}

	case "help":
		help()

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		help()
		os.Exit(1)
	}
}

// addModel inserts a new entry, creating the registry file if needed.
// For local artifacts the sha256 is filled in when withChecksum is set.
func addModel(path string, model registry.Model, withChecksum bool) error {
	reg, err := registry.LoadRegistry(path)
	if errors.Is(err, fs.ErrNotExist) {
		reg = &registry.ModelRegistry{Version: "1.0.0"}
	} else if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if _, exists := reg.Find(model.Name); exists {
		return fmt.Errorf("model with name %s already exists", model.Name)
	}

	if withChecksum && model.SHA256 == "" {
		if local, ok := localPath(model.URI); ok {
			data, err := os.ReadFile(local)
			if err != nil {
				return fmt.Errorf("failed to read artifact: %w", err)
			}
			model.SHA256 = artifact.Digest(data)
		}
	}

	reg.Upsert(model)
	return saveRegistry(reg, path)
}

func updateModel(path, name, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	model, ok := reg.Find(name)
	if !ok {
		return fmt.Errorf("model with name %s not found", name)
	}

	switch field {
	case "displayName":
		model.DisplayName = value
	case "kind":
		model.Kind = value
	case "version":
		model.Version = value
	case "uri":
		model.URI = value
		// the old digest no longer describes the artifact
		model.SHA256 = ""
	case "sha256":
		model.SHA256 = strings.ToLower(value)
	case "preload":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for preload: %w", err)
		}
		model.Preload = b
	case "tags":
		model.Tags = splitTags(value)
	default:
		return fmt.Errorf("unsupported field for update: %s", field)
	}

	return saveRegistry(reg, path)
}

// refreshChecksums recomputes sha256 for one model or, with an empty name, all of them.
func refreshChecksums(ctx context.Context, path, name string, deps artifact.Deps) ([]string, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	var updated []string
	for i := range reg.Models {
		m := &reg.Models[i]
		if name != "" && m.Name != name {
			continue
		}
		src, err := artifact.Open(m.URI, "", deps)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		data, err := src.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		m.SHA256 = artifact.Digest(data)
		updated = append(updated, m.Name)
	}
	if name != "" && len(updated) == 0 {
		return nil, fmt.Errorf("model with name %s not found", name)
	}

	return updated, saveRegistry(reg, path)
}

// publishModel uploads a local bundle and points the registry entry at it.
func publishModel(ctx context.Context, path, name, file, dest, version string, up Uploader) error {
	bucket, key, err := parseS3URI(dest)
	if err != nil {
		return err
	}

	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	model, ok := reg.Find(name)
	if !ok {
		return fmt.Errorf("model with name %s not found", name)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := up.PutObject(ctx, bucket, key, data); err != nil {
		return err
	}

	model.URI = dest
	model.SHA256 = artifact.Digest(data)
	if version != "" {
		model.Version = version
	}
	return saveRegistry(reg, path)
}

func validateRegistry(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	if len(reg.Models) == 0 {
		return fmt.Errorf("registry %s has no models", path)
	}
	kinds := map[string]bool{}
	for _, m := range reg.Models {
		kinds[m.Kind] = true
	}
	for _, k := range []string{"delivery_time", "courier_demand"} {
		if !kinds[k] {
			fmt.Printf("Warning: no %s model registered\n", k)
		}
	}
	return nil
}

func listModels(path string, w io.Writer) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tVERSION\tPRELOAD\tURI")
	for _, m := range reg.Models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", m.Name, m.Kind, m.Version, m.Preload, m.URI)
	}
	return tw.Flush()
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.ModelRegistry, path string) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := reg.Save(path); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func localPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return uri, true
	}
	if strings.EqualFold(u.Scheme, "file") {
		return u.Path, true
	}
	return "", false
}

func parseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil || !strings.EqualFold(u.Scheme, "s3") {
		return "", "", fmt.Errorf("destination must be s3://bucket/key, got %s", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("destination must be s3://bucket/key, got %s", uri)
	}
	return u.Host, key, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add       Add a new model to the registry
  update    Update an existing model's field
  checksum  Recompute sha256 digests from the artifacts
  publish   Upload a model bundle to S3 and point the registry at it
  validate  Validate the registry file
  list      List registered models
  help      Show this help message

Examples:
  registry-updater add -name delivery-time -kind delivery_time -uri configs/models/delivery-time.json
  registry-updater update -name delivery-time -field version -value 2024.07
  registry-updater checksum -name delivery-time
  registry-updater publish -name delivery-time -file build/delivery-time.json -dest s3://models/delivery-time/2024.07.json
  registry-updater validate -path configs/model-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
