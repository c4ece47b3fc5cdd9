package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/orchestra/internal/client"
	"github.com/kazz187/orchestra/internal/task"
	"github.com/kazz187/orchestra/internal/tasklog"
	"github.com/kazz187/orchestra/internal/transcript"
	"github.com/kazz187/orchestra/pkg/clog"
	"github.com/kazz187/orchestra/pkg/color"
)

var (
	app = kingpin.New("orchestra", "Command line client for the orchestra dashboard")

	serverURL = app.Flag("server", "Dashboard server URL").Envar("ORCHESTRA_SERVER").Default("http://localhost:3000").String()
	apiKey    = app.Flag("api-key", "API key").Envar("ORCHESTRA_API_KEY").String()
	logLevel  = app.Flag("log-level", "Log level").Envar("ORCHESTRA_LOG_LEVEL").Default("info").Enum("debug", "info", "warn", "error")

	tasksCmd     = app.Command("tasks", "List tasks, newest first")
	tasksProject = tasksCmd.Flag("project", "Only tasks of this project").String()

	createCmd         = app.Command("create", "Create a task and hand it to the producer")
	createProject     = createCmd.Flag("project", "Project ID").Required().String()
	createTitle       = createCmd.Flag("title", "Title; generated from the description when empty or unsuitable").String()
	createPriority    = createCmd.Flag("priority", "Priority").Default(string(task.PriorityMedium)).Enum(string(task.PriorityLow), string(task.PriorityMedium), string(task.PriorityHigh))
	createTags        = createCmd.Flag("tag", "Tag (repeatable)").Strings()
	createDescription = createCmd.Arg("description", "What the task is about").Required().String()

	sendCmd     = app.Command("send", "Append a message to a task")
	sendID      = sendCmd.Arg("id", "Task ID").Required().String()
	sendMessage = sendCmd.Arg("message", "Message text").Required().String()

	progressCmd  = app.Command("progress", "Show progress and logs of a task")
	progressID   = progressCmd.Arg("id", "Task ID").Required().String()
	progressChat = progressCmd.Flag("chat", "Render conversation lines as chat").Bool()

	watchCmd      = app.Command("watch", "Follow the transcript of a task")
	watchID       = watchCmd.Arg("id", "Task ID").Required().String()
	watchInterval = watchCmd.Flag("interval", "Polling interval").Default("2s").Duration()
	watchWindow   = watchCmd.Flag("dedup-window", "Window for suppressing echoed lines; the server's merge.dedupWindow setting when unset").Duration()
	watchChat     = watchCmd.Flag("chat", "Render conversation lines as chat").Bool()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var level slog.Level
	_ = level.UnmarshalText([]byte(*logLevel))
	slog.SetDefault(slog.New(clog.NewAttributesHandler(
		clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level), clog.WithColor(!color.Disabled())),
	)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.NewTaskClient(nil, *serverURL, *apiKey)

	var err error
	switch command {
	case tasksCmd.FullCommand():
		err = listTasks(ctx, c, os.Stdout)
	case createCmd.FullCommand():
		err = createTask(ctx, c, os.Stdout)
	case sendCmd.FullCommand():
		err = sendMessageTo(ctx, c, os.Stdout)
	case progressCmd.FullCommand():
		err = showProgress(ctx, c, os.Stdout)
	case watchCmd.FullCommand():
		err = watch(ctx, c, client.NewSettingsClient(nil, *serverURL, *apiKey), os.Stdout)
	}
	if err != nil {
		slog.ErrorContext(ctx, "command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func listTasks(ctx context.Context, c *client.TaskClient, w io.Writer) error {
	resp, err := c.ListTasks(ctx, *tasksProject)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tPROJECT\tTITLE")
	for _, t := range resp.Tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, color.Status(string(t.Status)).Sprint(t.Status), t.Priority, t.ProjectID, t.Title)
	}
	return tw.Flush()
}

func createTask(ctx context.Context, c *client.TaskClient, w io.Writer) error {
	t, err := c.CreateTask(ctx, &task.CreateTaskRequest{
		Title:       *createTitle,
		Description: *createDescription,
		ProjectID:   *createProject,
		Priority:    task.Priority(*createPriority),
		Tags:        *createTags,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "created %s %q\n", t.ID, t.Title)
	return nil
}

func sendMessageTo(ctx context.Context, c *client.TaskClient, w io.Writer) error {
	id, err := c.AppendMessage(ctx, *sendID, *sendMessage)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "sent %s\n", id)
	return nil
}

func showProgress(ctx context.Context, c *client.TaskClient, w io.Writer) error {
	p, err := c.GetTaskProgress(ctx, *progressID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %d%% %s\n", color.Status(p.Status).Sprint(p.Status), p.Progress, p.CurrentStep)
	printLines(w, p.Logs, *progressChat)
	for _, m := range p.AgentMessages {
		fmt.Fprintf(w, "%s %s -> %s: %s\n", m.Timestamp, m.From, m.To, m.Type)
	}
	return nil
}

// watch polls the task and prints only the lines the merger accepts, so a
// transcript survives the server minting fresh line ids on every read.
func watch(ctx context.Context, c *client.TaskClient, sc *client.SettingsClient, w io.Writer) error {
	window := *watchWindow
	if window <= 0 {
		var err error
		window, err = sc.DedupWindow(ctx, transcript.DefaultDedupWindow)
		if err != nil {
			slog.WarnContext(ctx, "failed to read dedup window from settings", "fallback", window, "error", err)
		}
	}
	merger := transcript.NewMerger(window)
	ticker := time.NewTicker(*watchInterval)
	defer ticker.Stop()

	lastStatus := ""
	for {
		p, err := c.GetTaskProgress(ctx, *watchID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			slog.WarnContext(ctx, "failed to poll task", "task_id", *watchID, "error", err)
		default:
			if p.Status != lastStatus {
				fmt.Fprintf(w, "== %s %d%% %s\n", color.Status(p.Status).Sprint(p.Status), p.Progress, p.CurrentStep)
				lastStatus = p.Status
			}
			printLines(w, merger.Merge(p.Logs), *watchChat)
			if task.Status(p.Status).Terminal() {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printLines(w io.Writer, lines []tasklog.LogLine, chat bool) {
	if !chat {
		for _, l := range lines {
			fmt.Fprintf(w, "%s %s %s\n", l.Timestamp, color.AgentPrefix(l.Agent), l.Message)
		}
		return
	}
	for _, m := range transcript.ToChatMessages(lines) {
		who := string(m.Role)
		if m.AgentType != "" {
			who = m.AgentType
		}
		fmt.Fprintf(w, "%s %s %s\n", m.Timestamp, color.AgentPrefix(who), m.Content)
	}
}
