package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/catechism/core/timetable"
)

func readYAML(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(v); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}

func (cli *commandLine) importCurriculum(path string) error {
	var cur timetable.Curriculum
	if err := readYAML(path, &cur); err != nil {
		return err
	}
	if err := cli.ttSvc.ImportCurriculum(context.Background(), cur); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d lesson(s) and %d session(s) for %s\n", len(cur.Lessons), len(cur.Sessions), cur.Key())
	return nil
}
