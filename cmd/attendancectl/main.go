package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Harshcreator/live-attendance-system/internal/auth"
	"github.com/Harshcreator/live-attendance-system/internal/config"
	"github.com/Harshcreator/live-attendance-system/internal/store"
	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

// attendancectl is the admin companion to the attendance server: it
// seeds accounts, classes and rosters, and mints signed connection
// tokens. Account signup/login over HTTP is intentionally not part of
// the server, so this is the supported way to provision data.

var errHelp = errors.New("help provided")

type commandLine struct {
	cfg   *config.Config
	store *store.Store
}

func main() {
	cfg := config.Load()

	st, err := store.NewStore(&store.Config{
		Path:            cfg.Database.Path,
		MaxConnections:  store.DefaultConfig().MaxConnections,
		ConnMaxLifetime: store.DefaultConfig().ConnMaxLifetime,
		ConnMaxIdleTime: store.DefaultConfig().ConnMaxIdleTime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	cli := &commandLine{cfg: cfg, store: st}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  add-user -name NAME -email EMAIL -password PASSWORD -role teacher|student")
	fmt.Println("  add-class -name NAME -teacher TEACHER_ID")
	fmt.Println("  enroll -class CLASS_ID -student STUDENT_ID")
	fmt.Println("  token -user USER_ID")
	fmt.Println("  list-attendance -class CLASS_ID | -student STUDENT_ID")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()

	switch args[1] {
	case "add-user":
		cmd := flag.NewFlagSet("add-user", flag.ExitOnError)
		name := cmd.String("name", "", "display name")
		email := cmd.String("email", "", "email address")
		password := cmd.String("password", "", "password")
		role := cmd.String("role", "", "teacher or student")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" || *email == "" || *password == "" || *role == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, *name, *email, *password, *role)

	case "add-class":
		cmd := flag.NewFlagSet("add-class", flag.ExitOnError)
		name := cmd.String("name", "", "class name")
		teacher := cmd.String("teacher", "", "owning teacher's user id")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *name == "" || *teacher == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addClass(ctx, *name, *teacher)

	case "enroll":
		cmd := flag.NewFlagSet("enroll", flag.ExitOnError)
		class := cmd.String("class", "", "class id")
		student := cmd.String("student", "", "student's user id")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *class == "" || *student == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.enroll(ctx, *class, *student)

	case "token":
		cmd := flag.NewFlagSet("token", flag.ExitOnError)
		user := cmd.String("user", "", "user id to mint a token for")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *user == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.mintToken(ctx, *user)

	case "list-attendance":
		cmd := flag.NewFlagSet("list-attendance", flag.ExitOnError)
		class := cmd.String("class", "", "class id")
		student := cmd.String("student", "", "student's user id")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if (*class == "") == (*student == "") {
			cmd.Usage()
			return errHelp
		}
		return cli.listAttendance(ctx, *class, *student)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) addUser(ctx context.Context, name, email, password, role string) error {
	user, err := cli.store.CreateUser(ctx, name, email, role, password)
	if err != nil {
		return err
	}
	fmt.Printf("created user: id=%s role=%s\n", user.ID, user.Role)
	return nil
}

func (cli *commandLine) addClass(ctx context.Context, name, teacherID string) error {
	class, err := cli.store.CreateClass(ctx, name, teacherID)
	if err != nil {
		return err
	}
	fmt.Printf("created class: id=%s teacher=%s\n", class.ID, class.TeacherID)
	return nil
}

func (cli *commandLine) enroll(ctx context.Context, classID, studentID string) error {
	if err := cli.store.EnrollStudent(ctx, classID, studentID); err != nil {
		return err
	}
	fmt.Printf("enrolled: class=%s student=%s\n", classID, studentID)
	return nil
}

func (cli *commandLine) mintToken(ctx context.Context, userID string) error {
	user, err := cli.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	verifier := auth.NewVerifier(cli.cfg.Auth.JWTSecret)
	token, err := verifier.Mint(types.Identity{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
	}, cli.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func (cli *commandLine) listAttendance(ctx context.Context, classID, studentID string) error {
	var records []*types.AttendanceRecord
	var err error
	if classID != "" {
		records, err = cli.store.ListAttendanceByClass(ctx, classID)
	} else {
		records, err = cli.store.ListAttendanceByStudent(ctx, studentID)
	}
	if err != nil {
		return err
	}

	for _, record := range records {
		fmt.Printf("class=%s student=%s status=%s updated=%s\n",
			record.ClassID, record.StudentID, record.Status, record.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("%d record(s)\n", len(records))
	return nil
}
