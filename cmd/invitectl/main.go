// Command invitectl 在命令行渲染设计、生成日历文件并导入模板。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"celebria/internal/calendar"
	"celebria/internal/config"
	"celebria/internal/database"
	"celebria/internal/design"
	"celebria/internal/live"
	"celebria/internal/render"
)

func main() {
	root := &cobra.Command{
		Use:           "invitectl",
		Short:         "Tools for celebria invitation designs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(renderCmd(), icsCmd(), scaleCmd(), seedTemplateCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("invitectl: %v", err)
	}
}

func readDesign(path string) (design.Document, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return design.Document{}, err
		}
		defer f.Close()
		r = f
	}
	var doc design.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return design.Document{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func renderCmd() *cobra.Command {
	var (
		mode, title, eventDate, location, tz, lang string
		page                                       int
		width, height                              float64
	)
	cmd := &cobra.Command{
		Use:   "render [design.json|-]",
		Short: "Render a design document to a standalone HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDesign(args[0])
			if err != nil {
				return err
			}
			m := render.Mode(mode)
			if !m.Valid() {
				return fmt.Errorf("unknown mode %q", mode)
			}
			loc, err := loadLocation(tz)
			if err != nil {
				return err
			}
			event := design.EventInfo{Title: title, EventDate: eventDate, Location: location}
			root := render.RenderDocument(doc, event, render.Options{
				Mode:     m,
				Selected: page,
				Title:    title,
				Viewport: live.Size{Width: width, Height: height},
				Location: loc,
				Now:      time.Now(),
			})
			return render.WritePage(cmd.Context(), cmd.OutOrStdout(), render.PageData{
				Title: title,
				Lang:  lang,
				Root:  root,
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&mode, "mode", string(render.ModePreview), "editor-single-page, stacked-preview or public-scroll")
	f.IntVar(&page, "page", 0, "selected page in editor mode")
	f.Float64Var(&width, "width", render.PortraitWidth, "container width in px")
	f.Float64Var(&height, "height", render.Unbounded, "container height in px, 0 for unbounded")
	f.StringVar(&title, "title", "", "invitation title")
	f.StringVar(&eventDate, "event-date", "", "event date as ISO 8601")
	f.StringVar(&location, "location", "", "event location")
	f.StringVar(&tz, "timezone", "America/Lima", "zone for dates without offset")
	f.StringVar(&lang, "lang", "es", "html lang attribute")
	return cmd
}

func icsCmd() *cobra.Command {
	var title, start, end, location, uid, tz string
	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Write an iCalendar file for an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := loadLocation(tz)
			if err != nil {
				return err
			}
			startAt, err := design.ParseISO(start, loc)
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			var endAt time.Time
			if end != "" {
				if endAt, err = design.ParseISO(end, loc); err != nil {
					return fmt.Errorf("end: %w", err)
				}
			}
			if uid == "" {
				uid = fmt.Sprintf("invitectl-%d", time.Now().UnixMilli())
			}
			content, err := calendar.Build(calendar.Event{
				UID:      uid,
				Start:    startAt,
				End:      endAt,
				Summary:  title,
				Location: location,
			})
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), content)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "event summary")
	f.StringVar(&start, "start", "", "start as ISO 8601")
	f.StringVar(&end, "end", "", "end as ISO 8601, defaults to start + 2h")
	f.StringVar(&location, "location", "", "event location")
	f.StringVar(&uid, "uid", "", "event UID")
	f.StringVar(&tz, "timezone", "America/Lima", "zone for dates without offset")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func scaleCmd() *cobra.Command {
	var orientation string
	var width, height float64
	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Print the scale that fits a page into a container",
		RunE: func(cmd *cobra.Command, args []string) error {
			o := design.Orientation(strings.ToLower(orientation))
			if o != design.Portrait && o != design.Landscape {
				return fmt.Errorf("unknown orientation %q", orientation)
			}
			s := render.ComputeScale(o, width, height)
			w, h := s.OuterSize()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "logical %gx%g scale %.4f outer %.1fx%.1f\n",
				s.LogicalWidth, s.LogicalHeight, s.Scale, w, h)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&orientation, "orientation", string(design.Portrait), "portrait or landscape")
	f.Float64Var(&width, "width", 0, "container width in px")
	f.Float64Var(&height, "height", render.Unbounded, "container height in px, 0 for unbounded")
	_ = cmd.MarkFlagRequired("width")
	return cmd
}

func seedTemplateCmd() *cobra.Command {
	var title string
	var public bool
	cmd := &cobra.Command{
		Use:   "seed-template [design.json|-]",
		Short: "Store a design document as a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDesign(args[0])
			if err != nil {
				return err
			}
			raw, err := database.EncodeDesign(doc)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.InitDatabase(cfg.Database)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tpl := database.Template{Title: title, Design: raw, IsPublic: public}
			if err := db.WithContext(ctx).Create(&tpl).Error; err != nil {
				return fmt.Errorf("create template: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "template %d created with %d pages\n", tpl.ID, len(doc.Pages))
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "template title")
	cmd.Flags().BoolVar(&public, "public", true, "list the template for every organizer")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
