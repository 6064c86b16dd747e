package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"orionos/internal/servicetoken"
	"orionos/internal/util"
	"orionos/pkg/apps"
	"orionos/pkg/domain"
)

func appsCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage the global app catalog",
	}
	cmd.AddCommand(appsSeedCmd(cfg), appsListCmd(cfg), appsRegisterCmd(cfg))
	return cmd
}

func appsSeedCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the core apps that are missing from the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := cfg.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			now := time.Now().UTC()
			for _, descriptor := range apps.CoreApps() {
				_, existed, err := st.GetAppByName(ctx, descriptor.Name)
				if err != nil {
					return fmt.Errorf("look up %s: %w", descriptor.Name, err)
				}
				descriptor.ID = util.NewID()
				descriptor.CreatedAt, descriptor.UpdatedAt = now, now
				app, err := st.EnsureApp(ctx, descriptor)
				if err != nil {
					return fmt.Errorf("seed %s: %w", descriptor.Name, err)
				}
				status := okMark("created")
				if existed {
					status = warnMark("exists ")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", status, app.Name, app.ID)
			}
			return nil
		},
	}
}

func appsListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the app catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := cfg.store()
			if err != nil {
				return err
			}
			items, err := st.ListApps(cmd.Context())
			if err != nil {
				return fmt.Errorf("list apps: %w", err)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No apps registered. Run: orionctl apps seed")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY NAME\tWINDOW\tFEATURES\tSYSTEM")
			for _, a := range items {
				features := make([]string, 0, len(a.Features))
				for _, f := range a.Features {
					features = append(features, string(f))
				}
				fmt.Fprintf(w, "%s\t%s\t%gx%g\t%s\t%t\n",
					a.Name, a.DisplayName, a.DefaultWindow.Width, a.DefaultWindow.Height,
					strings.Join(features, ","), a.IsSystem)
			}
			return w.Flush()
		},
	}
}

// descriptorFile is the YAML form of an app descriptor.
type descriptorFile struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"displayName"`
	Description string   `yaml:"description"`
	IconURL     string   `yaml:"iconUrl"`
	Width       float64  `yaml:"width"`
	Height      float64  `yaml:"height"`
	Placement   string   `yaml:"placement"`
	Features    []string `yaml:"features"`
}

func (d descriptorFile) app() domain.App {
	features := make([]domain.Capability, 0, len(d.Features))
	for _, f := range d.Features {
		features = append(features, domain.Capability(strings.TrimSpace(f)))
	}
	return domain.App{
		Name:          d.Name,
		DisplayName:   d.DisplayName,
		Description:   d.Description,
		IconURL:       d.IconURL,
		DefaultWindow: domain.WindowConfig{Width: d.Width, Height: d.Height, Placement: d.Placement},
		Features:      features,
	}
}

// LoadDescriptor reads and validates an app descriptor file.
func LoadDescriptor(path string) (domain.App, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.App{}, fmt.Errorf("read descriptor: %w", err)
	}
	var file descriptorFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.App{}, fmt.Errorf("parse descriptor: %w", err)
	}
	return apps.ValidateDescriptor(file.app())
}

func appsRegisterCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "register [descriptor.yaml]",
		Short: "Register an app with a running desktop service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptor, err := LoadDescriptor(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.DesktopURL) == "" {
				return fmt.Errorf("desktop URL required\nHint: pass --desktop-url")
			}
			token, err := cfg.sign(servicetoken.ScopeAppsWrite)
			if err != nil {
				return err
			}
			body, err := json.Marshal(descriptor)
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				strings.TrimRight(cfg.DesktopURL, "/")+"/internal/apps", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
			if err != nil {
				return fmt.Errorf("register %s: %w", descriptor.Name, err)
			}
			defer resp.Body.Close()
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("register %s: desktop returned %d: %s", descriptor.Name, resp.StatusCode, strings.TrimSpace(string(payload)))
			}
			var registered domain.App
			if err := json.Unmarshal(payload, &registered); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s registered %s (%s)\n", okMark("✓"), registered.Name, registered.ID)
			return nil
		},
	}
}
