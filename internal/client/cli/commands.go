package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/services"
	"github.com/dmitrijs2005/listbuffer/internal/filex"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
	"github.com/dustin/go-humanize"
)

// libraryFlag selects the document library of a list instead of an item.
const libraryFlag = "-f"

func (a *App) commands() map[string]command {
	return map[string]command{
		"types":        {"", "list declared entity types", a.types},
		"insert":       {"<list>", "insert an item", a.insert},
		"update":       {"<list> <id>", "update fields of an item", a.update},
		"delete":       {"<list> <id>", "delete an item", a.delete},
		"empty":        {"<list>", "delete every item of a list", a.empty},
		"get":          {"<list> <id>", "show an item", a.get},
		"list":         {"<list>", "list items", a.list},
		"find":         {"<list> [-or] <field>=<value>...", "select items by field values", a.find},
		"like":         {"<list> <id> <user>", "like an item", a.like(true)},
		"unlike":       {"<list> <id> <user>", "remove a like", a.like(false)},
		"attach":       {"<list> <id>|-f <folder> <path>", "attach a file to an item or library", a.attach},
		"detach":       {"<list> <id>|-f <folder> <name>...", "remove attached files", a.detach},
		"files":        {"<list> <id>|-f <folder>", "list attached files", a.files},
		"save":         {"<list> <id>|-f <folder> <name> <dest>", "write an attached file to disk", a.save},
		"prefetch":     {"<list> <id>|-f <folder>", "download attached files for offline use", a.prefetch},
		"queue":        {"", "show queued commands", a.queue},
		"disable":      {"<seq>", "disable a queued command", a.disable},
		"drain":        {"", "replay queued commands now", a.drain},
		"status":       {"", "show connection and queue status", a.showStatus},
		"reset":        {"", "wipe local items, files and the queue", a.reset},
		"refresh":      {"<list>", "replace local items with the server copy", a.refresh},
		"create-table": {"<list>", "create the list on the server", a.createTable},
		"delete-table": {"<list>", "delete the list on the server", a.deleteTable},
		"choices":      {"<list> <field>", "show the server's choices for a field", a.choices},
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// itemArgs resolves "<list> <id>" plus n extra arguments.
func (a *App) itemArgs(args []string, extra int) (*services.Table[map[string]any], int, error) {
	if len(args) != 2+extra {
		return nil, 0, errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return nil, 0, err
	}
	id, err := parseID(args[1])
	if err != nil {
		return nil, 0, err
	}
	return tb, id, nil
}

// fileTarget resolves "<list> <id>" or "<list> -f <folder>" and returns the
// remaining arguments.
type fileTarget struct {
	tb     *services.Table[map[string]any]
	id     int
	folder string
	rest   []string
}

func (t *fileTarget) library() bool { return t.folder != "" }

func (a *App) fileArgs(args []string) (*fileTarget, error) {
	if len(args) < 2 {
		return nil, errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return nil, err
	}
	if args[1] == libraryFlag {
		if len(args) < 3 || args[2] == "" {
			return nil, errUsage
		}
		return &fileTarget{tb: tb, folder: args[2], rest: args[3:]}, nil
	}
	id, err := parseID(args[1])
	if err != nil {
		return nil, err
	}
	return &fileTarget{tb: tb, id: id, rest: args[2:]}, nil
}

func (a *App) printItems(t *schema.Type, docs []map[string]any) error {
	for _, d := range docs {
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		id, _ := t.ID(b)
		title := t.Title(b)
		if title == "" {
			title = string(b)
		}
		fmt.Fprintf(a.out, "%6d  %s\n", id, title)
	}
	fmt.Fprintf(a.out, "(%d items)\n", len(docs))
	return nil
}

func (a *App) types(_ context.Context, _ []string) error {
	for _, t := range a.buffer.Registry().Types() {
		names := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			names = append(names, fmt.Sprintf("%s:%s", f.Name, f.Kind))
		}
		fmt.Fprintf(a.out, "%-14s %-24s %s\n", t.List, t.Name, strings.Join(names, " "))
	}
	return nil
}

func (a *App) insert(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return err
	}
	fields, err := GetFields(a.reader, a.out)
	if err != nil {
		return err
	}
	id, err := tb.Insert(ctx, fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Inserted %d\n", id)
	return nil
}

func (a *App) update(ctx context.Context, args []string) error {
	tb, id, err := a.itemArgs(args, 0)
	if err != nil {
		return err
	}
	doc, err := tb.SelectByID(ctx, id)
	if err != nil {
		return err
	}
	patch, err := GetFields(a.reader, a.out)
	if err != nil {
		return err
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc[tb.Type().IDField] = id
	if err := tb.Update(ctx, doc); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %d\n", id)
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	tb, id, err := a.itemArgs(args, 0)
	if err != nil {
		return err
	}
	return tb.DeleteByID(ctx, id)
}

func (a *App) empty(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return err
	}
	return tb.Empty(ctx)
}

func (a *App) reset(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	answer, err := GetSimpleText(a.reader, "Queued commands that were not replayed are lost. Type yes to continue", a.out)
	if err != nil {
		return err
	}
	if answer != "yes" {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.buffer.EmptyStorage(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Local storage emptied")
	return nil
}

func (a *App) get(ctx context.Context, args []string) error {
	tb, id, err := a.itemArgs(args, 0)
	if err != nil {
		return err
	}
	doc, err := tb.SelectByID(ctx, id)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return err
	}
	docs, err := tb.SelectAll(ctx)
	if err != nil {
		return err
	}
	return a.printItems(tb.Type(), docs)
}

func (a *App) find(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return err
	}

	op := services.And
	var conds []schema.Condition
	for _, arg := range args[1:] {
		if arg == "-or" {
			op = services.Or
			continue
		}
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return fmt.Errorf("expected field=value, got %q", arg)
		}
		value, err := conditionValue(tb.Type(), name, raw)
		if err != nil {
			return err
		}
		conds = append(conds, schema.Condition{Field: name, Value: value})
	}
	if len(conds) == 0 {
		return errUsage
	}

	docs, err := tb.SelectByFields(ctx, conds, op)
	if err != nil {
		return err
	}
	return a.printItems(tb.Type(), docs)
}

// conditionValue converts raw to the Go type the matcher expects for the
// field's kind.
func conditionValue(t *schema.Type, name, raw string) (any, error) {
	f, ok := t.Field(name)
	if !ok {
		return ParseValue(raw), nil
	}
	switch f.Kind {
	case schema.KindString:
		if s, ok := ParseValue(raw).(string); ok {
			return s, nil
		}
		return raw, nil
	case schema.KindInt, schema.KindRef, schema.KindRefSet:
		return strconv.Atoi(raw)
	case schema.KindFloat:
		return strconv.ParseFloat(raw, 64)
	case schema.KindBool:
		return strconv.ParseBool(raw)
	case schema.KindTime:
		return time.Parse(time.RFC3339Nano, raw)
	}
	return ParseValue(raw), nil
}

func (a *App) like(like bool) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		tb, id, err := a.itemArgs(args, 1)
		if err != nil {
			return err
		}
		user, err := parseID(args[2])
		if err != nil {
			return err
		}
		if like {
			err = tb.Like(ctx, id, user)
		} else {
			err = tb.Unlike(ctx, id, user)
		}
		if err != nil {
			return err
		}
		likes, err := tb.GetLikes(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d likes\n", len(likes))
		return nil
	}
}

func (a *App) attach(ctx context.Context, args []string) error {
	ft, err := a.fileArgs(args)
	if err != nil {
		return err
	}
	if len(ft.rest) != 1 {
		return errUsage
	}
	path := ft.rest[0]

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)
	if ft.library() {
		return ft.tb.AttachFileToLibrary(ctx, ft.folder, name, f, nil)
	}
	return ft.tb.AttachFileToItem(ctx, ft.id, name, f)
}

func (a *App) detach(ctx context.Context, args []string) error {
	ft, err := a.fileArgs(args)
	if err != nil {
		return err
	}
	if len(ft.rest) == 0 {
		return errUsage
	}
	if ft.library() {
		return ft.tb.DeleteFilesFromLibrary(ctx, ft.folder, ft.rest)
	}
	for _, name := range ft.rest {
		if err := ft.tb.DeleteFileFromItem(ctx, ft.id, name); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) files(ctx context.Context, args []string) error {
	ft, err := a.fileArgs(args)
	if err != nil {
		return err
	}
	if len(ft.rest) != 0 {
		return errUsage
	}

	var files []services.File
	if ft.library() {
		files, err = ft.tb.SelectFilesFromLibrary(ctx, ft.folder)
	} else {
		files, err = ft.tb.SelectFilesFromItem(ctx, ft.id)
	}
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(a.out, "%-32s %-8s %10s  %s\n", f.Filename, f.Residency,
			humanize.Bytes(uint64(len(f.Content))), humanize.Time(f.UploadedAt))
	}
	return nil
}

func (a *App) save(ctx context.Context, args []string) error {
	ft, err := a.fileArgs(args)
	if err != nil {
		return err
	}
	if len(ft.rest) != 2 {
		return errUsage
	}
	name, dest := ft.rest[0], ft.rest[1]

	var content []byte
	if ft.library() {
		f, err := ft.tb.SelectFileFromLibrary(ctx, ft.folder, name)
		if err != nil {
			return err
		}
		content = f.Content
	} else {
		files, err := ft.tb.SelectFilesFromItem(ctx, ft.id)
		if err != nil {
			return err
		}
		found := false
		for _, f := range files {
			if f.Filename == name {
				content, found = f.Content, true
				break
			}
		}
		if !found {
			return fmt.Errorf("file %q not attached to %d", name, ft.id)
		}
	}

	if err := filex.WriteAtomic(dest, content, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s (%s)\n", dest, humanize.Bytes(uint64(len(content))))
	return nil
}

func (a *App) prefetch(ctx context.Context, args []string) error {
	ft, err := a.fileArgs(args)
	if err != nil {
		return err
	}
	if len(ft.rest) != 0 {
		return errUsage
	}
	var n int
	if ft.library() {
		n, err = ft.tb.StoreLibrary(ctx, ft.folder)
	} else {
		n, err = ft.tb.StoreAttachments(ctx, ft.id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Stored %d files\n", n)
	return nil
}

func (a *App) queue(ctx context.Context, _ []string) error {
	cmds, err := a.buffer.Commands(ctx)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		item := "-"
		if c.ItemID != nil {
			item = strconv.Itoa(*c.ItemID)
		}
		fmt.Fprintf(a.out, "%4d  %-9s %-24s %-12s %6s", c.Seq, c.State, c.Action, c.TableName, item)
		if c.LastError != "" {
			fmt.Fprintf(a.out, "  (%d attempts: %s)", c.Attempts, c.LastError)
		}
		fmt.Fprintln(a.out)
	}
	fmt.Fprintf(a.out, "(%d commands)\n", len(cmds))
	return nil
}

func (a *App) disable(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	seq, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence %q", args[0])
	}
	return a.buffer.Disable(ctx, seq)
}

func (a *App) drain(ctx context.Context, _ []string) error {
	res, err := a.buffer.Drain(ctx)
	if res != nil {
		a.printDrain(res)
	}
	return err
}

func (a *App) printDrain(res *services.DrainResult) {
	fmt.Fprintf(a.out, "Drain %s: %d succeeded, %d remapped, %d collected\n",
		humanize.Time(res.FinishedAt), res.Succeeded, res.Remapped, res.Collected)
	if !res.Complete() {
		fmt.Fprintf(a.out, "Stopped at command %d: %s\n", res.FailedSeq, res.Error)
	}
}

func (a *App) showStatus(ctx context.Context, _ []string) error {
	fmt.Fprintf(a.out, "Server: %s\n", a.status())

	at, ok, err := a.session.LastLogin(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(a.out, "Last login: %s\n", humanize.Time(at))
	}

	res, ok, err := a.buffer.LastDrain(ctx)
	if err != nil {
		return err
	}
	if ok {
		a.printDrain(res)
	}

	stats, err := a.buffer.Stats(ctx)
	if err != nil {
		return err
	}
	states := make([]string, 0, len(stats))
	for s, n := range stats {
		states = append(states, fmt.Sprintf("%s=%d", s, n))
	}
	sort.Strings(states)
	fmt.Fprintf(a.out, "Queue: %s\n", strings.Join(states, " "))

	handles, err := a.buffer.Handles(ctx)
	if err != nil {
		return err
	}
	lists := make([]string, 0, len(handles))
	for l := range handles {
		lists = append(lists, l)
	}
	sort.Strings(lists)
	for _, l := range lists {
		fmt.Fprintf(a.out, "Remote %s: %s\n", l, handles[l])
	}
	return nil
}

func (a *App) refresh(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return err
	}
	n, err := tb.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Loaded %d items\n", n)
	return nil
}

func (a *App) createTable(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return err
	}
	handle, err := tb.CreateTable(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s (%s)\n", args[0], handle)
	return nil
}

func (a *App) deleteTable(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return err
	}
	return tb.DeleteTableIfExisting(ctx)
}

func (a *App) choices(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	tb, err := a.table(args[0])
	if err != nil {
		return err
	}
	choices, err := tb.GetAvailableChoicesFromField(ctx, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, strings.Join(choices, ", "))
	return nil
}
