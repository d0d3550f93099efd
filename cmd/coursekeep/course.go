// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/coursekeep/coursekeep/internal/course"
)

// dateLayout is the format course dates are given and printed in.
const dateLayout = "2006-01-02"

// NewCourseCmd creates the course command group.
func NewCourseCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Manage courses, enrollments and progress",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a course",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCourses(cmd, deps, func(svc *course.Service) error {
				flags := cmd.Flags()
				title, _ := flags.GetString("title")
				description, _ := flags.GetString("description")
				startRaw, _ := flags.GetString("start")
				endRaw, _ := flags.GetString("end")
				instructorRaw, _ := flags.GetString("instructor")

				start, err := parseDate("start", startRaw)
				if err != nil {
					return err
				}
				end, err := parseDate("end", endRaw)
				if err != nil {
					return err
				}
				instructor, err := parseID("instructor", instructorRaw)
				if err != nil {
					return err
				}

				c, err := svc.CreateCourse(cmd.Context(), title, description, start, end, instructor)
				if err != nil {
					return err
				}
				cmd.Println(c.ID.String())
				return nil
			})
		},
	}
	create.Flags().String("title", "", "course title")
	create.Flags().String("description", "", "course description")
	create.Flags().String("start", "", "start date (YYYY-MM-DD)")
	create.Flags().String("end", "", "end date (YYYY-MM-DD)")
	create.Flags().String("instructor", "", "instructor user id")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCourses(cmd, deps, func(svc *course.Service) error {
				courses, err := svc.Courses(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tSTART\tEND\tINSTRUCTOR")
				for _, c := range courses {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						c.ID, c.Title, c.StartDate.Format(dateLayout), c.EndDate.Format(dateLayout), c.InstructorID)
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "enroll USER_ID COURSE_ID",
		Short: "Enroll a user in a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, courseID, err := parseUserCourse(args)
			if err != nil {
				return err
			}
			return withCourses(cmd, deps, func(svc *course.Service) error {
				e, err := svc.Enroll(cmd.Context(), userID, courseID)
				if err != nil {
					return err
				}
				cmd.Printf("Enrollment %s created\n", e.ID.String())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "progress USER_ID COURSE_ID [PERCENT]",
		Short: "Show or record a user's completion percentage",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, courseID, err := parseUserCourse(args)
			if err != nil {
				return err
			}
			return withCourses(cmd, deps, func(svc *course.Service) error {
				ctx := cmd.Context()
				if len(args) == 3 {
					percent, err := strconv.Atoi(args[2])
					if err != nil {
						return oops.Code("PROGRESS_INVALID").With("percentage", args[2]).Wrap(err)
					}
					if err := svc.RecordProgress(ctx, userID, courseID, percent); err != nil {
						return err
					}
				}
				p, err := svc.Progress(ctx, userID, courseID)
				if err != nil {
					return err
				}
				cmd.Printf("%d%%\n", p.CompletionPercentage)
				return nil
			})
		},
	})

	return cmd
}

// withCourses opens the database and runs fn with a course service.
func withCourses(cmd *cobra.Command, deps *Deps, fn func(*course.Service) error) error {
	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	pool, err := openDatabase(cmd.Context(), cfg, deps)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := newCourseService(pool, slog.Default())
	if err != nil {
		return err
	}
	return fn(svc)
}

func parseUserCourse(args []string) (userID, courseID ulid.ULID, err error) {
	userID, err = parseID("user", args[0])
	if err != nil {
		return ulid.ULID{}, ulid.ULID{}, err
	}
	courseID, err = parseID("course", args[1])
	if err != nil {
		return ulid.ULID{}, ulid.ULID{}, err
	}
	return userID, courseID, nil
}

func parseID(field, raw string) (ulid.ULID, error) {
	id, err := ulid.Parse(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ARGUMENT").With("field", field).With("value", raw).Wrap(err)
	}
	return id, nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, oops.Code("INVALID_ARGUMENT").With("field", field).With("value", raw).Wrap(err)
	}
	return t, nil
}
