package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	db      *sqlx.DB // nil for commands that only talk to the API
	usrRepo user.Repository
	ttSvc   *timetable.Service
	in      *bufio.Reader
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run goose migration command")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -email EMAIL [-role ROLE]... - create or update an active user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  import -file CURRICULUM.yaml - import the academic year, lessons and sessions of a grade")
	fmt.Fprintln(cli.out, "  automap -grade ID -year ID -username USERNAME|EMAIL [-activities FILE.yaml] [-mode separate|grouped] [-export FILE.xlsx] [-diff] [-submit] - plan a timetable through the API")
}

// needsDB reports whether the command of args works on the database directly.
func needsDB(args []string) bool {
	return len(args) < 2 || args[1] != "automap"
}

type rolesFlag []string

func (r *rolesFlag) String() string { return strings.Join(*r, ",") }

func (r *rolesFlag) Set(role string) error {
	*r = append(*r, role)
	return nil
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) readLine(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	line, err := cli.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. One of username or email is required.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. One of username or email is required.")
	var addUserRoles rolesFlag
	addUserCmd.Var(&addUserRoles, "role", "A role of the user (repeatable), e.g. catechist: or admin:principal.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "The YAML file describing the curriculum of a grade.")

	autoMapCmd := flag.NewFlagSet("automap", flag.ExitOnError)
	autoMapOpts := autoMapOptions{}
	autoMapCmd.IntVar(&autoMapOpts.key.GradeID, "grade", 0, "The grade ID.")
	autoMapCmd.IntVar(&autoMapOpts.key.YearID, "year", 0, "The academic year ID.")
	autoMapCmd.StringVar(&autoMapOpts.username, "username", "", "The username or email to log in with. The password will be prompted next.")
	autoMapCmd.StringVar(&autoMapOpts.activitiesFile, "activities", "", "A YAML file of manual and additional activities keyed by session ID.")
	autoMapCmd.StringVar(&autoMapOpts.mode, "mode", "", "The preview mode: separate or grouped. Defaults to the configured mode.")
	autoMapCmd.StringVar(&autoMapOpts.exportFile, "export", "", "Write the preview to this spreadsheet.")
	autoMapCmd.BoolVar(&autoMapOpts.diff, "diff", false, "Compare the mapping with the submitted timetable.")
	autoMapCmd.BoolVar(&autoMapOpts.submit, "submit", false, "Submit the mapping after confirmation.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			fmt.Fprintln(cli.out, "Usage: migrate up|up-by-one|up-to|down|down-to|redo|reset|status|version|create|fix [ARGS]")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, addUserRoles)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importCurriculum(*importFile)

	case "automap":
		if err := autoMapCmd.Parse(args[2:]); err != nil {
			return err
		}
		if autoMapOpts.key.GradeID <= 0 || autoMapOpts.key.YearID <= 0 || autoMapOpts.username == "" {
			autoMapCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			autoMapCmd.Usage()
			return errHelp
		}
		autoMapOpts.password = pwd
		return cli.autoMap(autoMapOpts)

	default:
		cli.printUsage()
		return errHelp
	}
}
