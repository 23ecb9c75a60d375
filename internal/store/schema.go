package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS workflow_configs (
	id         TEXT PRIMARY KEY,
	yaml       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS task_events (
	task_id  TEXT    NOT NULL,
	sequence INTEGER NOT NULL,
	payload  TEXT    NOT NULL,
	PRIMARY KEY (task_id, sequence)
);

CREATE TABLE IF NOT EXISTS task_snapshots (
	task_id  TEXT    PRIMARY KEY,
	sequence INTEGER NOT NULL,
	payload  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS annotations (
	id             TEXT PRIMARY KEY,
	task_id        TEXT NOT NULL,
	project_id     TEXT NOT NULL DEFAULT '',
	step_id        TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	data           TEXT NOT NULL,
	decision       TEXT,
	reason         TEXT,
	adjudication   INTEGER NOT NULL DEFAULT 0,
	final_decision INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_annotations_task_step ON annotations(task_id, step_id);
CREATE INDEX IF NOT EXISTS idx_annotations_project_step ON annotations(project_id, step_id);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	roles      TEXT NOT NULL,
	skills     TEXT NOT NULL,
	joined_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS assignments (
	id            TEXT PRIMARY KEY,
	task_id       TEXT NOT NULL,
	project_id    TEXT NOT NULL DEFAULT '',
	step_id       TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	status        TEXT NOT NULL,
	assigned_at   INTEGER NOT NULL,
	accepted_at   INTEGER,
	submitted_at  INTEGER,
	time_spent_ms INTEGER NOT NULL DEFAULT 0,
	metadata      TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_assignments_user ON assignments(user_id, status);
CREATE INDEX IF NOT EXISTS idx_assignments_task ON assignments(task_id);

CREATE TABLE IF NOT EXISTS goals (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL,
	kind        TEXT NOT NULL,
	target      REAL NOT NULL,
	current     REAL NOT NULL DEFAULT 0,
	completed   INTEGER NOT NULL DEFAULT 0,
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_goals_project ON goals(project_id);

CREATE TABLE IF NOT EXISTS goal_children (
	id             TEXT PRIMARY KEY,
	goal_id        TEXT NOT NULL,
	child_goal_id  TEXT NOT NULL,
	position       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_goal_children_goal ON goal_children(goal_id, position);
`

func (db *DB) migrate() error {
	_, err := db.conn.Exec(schemaDDL)
	return err
}
