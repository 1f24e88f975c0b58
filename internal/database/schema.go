package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- String dimensions: each distinct trimmed value is stored exactly once and
-- referenced by id from every other table

CREATE TABLE IF NOT EXISTS Nationalities (
    nationality_id INTEGER PRIMARY KEY AUTOINCREMENT,
    nationality TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS Circuits (
    circuit_id INTEGER PRIMARY KEY AUTOINCREMENT,
    circuit_name TEXT UNIQUE NOT NULL,

    -- Populated lazily from the results provider's metadata when the
    -- weather adapter first needs them
    latitude REAL,
    longitude REAL
);

CREATE TABLE IF NOT EXISTS Statuses (
    status_id INTEGER PRIMARY KEY AUTOINCREMENT,
    status TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS SessionTypes (
    session_type_id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_type TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS Compounds (
    compound_id INTEGER PRIMARY KEY AUTOINCREMENT,
    compound TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS RaceNames (
    race_name_id INTEGER PRIMARY KEY AUTOINCREMENT,
    race_name TEXT UNIQUE NOT NULL
);

-- Composite dimensions

CREATE TABLE IF NOT EXISTS Drivers (
    driver_id INTEGER PRIMARY KEY AUTOINCREMENT,
    api_driver_id TEXT UNIQUE NOT NULL,
    code TEXT,
    forename TEXT,
    surname TEXT,
    nationality_id INTEGER,
    FOREIGN KEY (nationality_id) REFERENCES Nationalities(nationality_id)
);

CREATE TABLE IF NOT EXISTS Constructors (
    constructor_id INTEGER PRIMARY KEY AUTOINCREMENT,
    api_constructor_id TEXT UNIQUE NOT NULL,
    name TEXT,
    nationality_id INTEGER,
    FOREIGN KEY (nationality_id) REFERENCES Nationalities(nationality_id)
);

-- round is NULL for races created provisionally by a telemetry source
-- before the authoritative round number is known
CREATE TABLE IF NOT EXISTS Races (
    race_id INTEGER PRIMARY KEY AUTOINCREMENT,
    season INTEGER NOT NULL,
    round INTEGER,
    race_name_id INTEGER,
    date INTEGER,  -- YYYYMMDD
    circuit_id INTEGER,
    FOREIGN KEY (race_name_id) REFERENCES RaceNames(race_name_id),
    FOREIGN KEY (circuit_id) REFERENCES Circuits(circuit_id)
);

CREATE TABLE IF NOT EXISTS Sessions (
    session_id INTEGER PRIMARY KEY AUTOINCREMENT,
    race_id INTEGER NOT NULL,
    session_type_id INTEGER NOT NULL,

    -- Mean values across the session's raw weather samples
    track_temp REAL,
    humidity REAL,
    wind_speed REAL,

    UNIQUE (race_id, session_type_id),
    FOREIGN KEY (race_id) REFERENCES Races(race_id),
    FOREIGN KEY (session_type_id) REFERENCES SessionTypes(session_type_id)
);

-- Fact tables

CREATE TABLE IF NOT EXISTS Results (
    result_id INTEGER PRIMARY KEY AUTOINCREMENT,
    race_id INTEGER NOT NULL,
    driver_id INTEGER NOT NULL,
    constructor_id INTEGER NOT NULL,
    grid INTEGER,
    position INTEGER,  -- NULL means did-not-finish or unclassified
    points REAL,
    status_id INTEGER,
    UNIQUE (race_id, driver_id),
    FOREIGN KEY (race_id) REFERENCES Races(race_id),
    FOREIGN KEY (driver_id) REFERENCES Drivers(driver_id),
    FOREIGN KEY (constructor_id) REFERENCES Constructors(constructor_id),
    FOREIGN KEY (status_id) REFERENCES Statuses(status_id)
);

CREATE TABLE IF NOT EXISTS LapTimes (
    lap_id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    driver_id INTEGER NOT NULL,
    lap_number INTEGER NOT NULL,
    lap_time_ms INTEGER,
    sector1_ms INTEGER,
    sector2_ms INTEGER,
    sector3_ms INTEGER,
    compound_id INTEGER,
    fresh_tyre INTEGER NOT NULL DEFAULT 0,
    UNIQUE (session_id, driver_id, lap_number),
    FOREIGN KEY (session_id) REFERENCES Sessions(session_id),
    FOREIGN KEY (driver_id) REFERENCES Drivers(driver_id),
    FOREIGN KEY (compound_id) REFERENCES Compounds(compound_id)
);

CREATE TABLE IF NOT EXISTS Weather (
    weather_id INTEGER PRIMARY KEY AUTOINCREMENT,
    race_id INTEGER NOT NULL,
    timestamp TEXT NOT NULL,
    temperature_c REAL,
    wind_speed REAL,
    precipitation_mm REAL,
    source TEXT NOT NULL,
    UNIQUE (race_id, timestamp, source),
    FOREIGN KEY (race_id) REFERENCES Races(race_id)
);

-- Progress ledger: one row per ingestion source, overwritten on each update
CREATE TABLE IF NOT EXISTS LoadProgress (
    source TEXT PRIMARY KEY,
    last_season INTEGER NOT NULL,
    last_round INTEGER NOT NULL,
    last_event TEXT
);

-- (season, round) identifies a race once the round is known; provisional
-- races (round NULL) fall outside the index and are matched by name instead
CREATE UNIQUE INDEX IF NOT EXISTS idx_races_season_round ON Races(season, round) WHERE round IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_races_season ON Races(season);
CREATE INDEX IF NOT EXISTS idx_drivers_code ON Drivers(code);
CREATE INDEX IF NOT EXISTS idx_results_race ON Results(race_id);
CREATE INDEX IF NOT EXISTS idx_laptimes_session ON LapTimes(session_id);
CREATE INDEX IF NOT EXISTS idx_weather_race ON Weather(race_id);
`
