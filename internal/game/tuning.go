package game

const (
	FieldWidth  = 800.0
	FieldHeight = 400.0
	GroundY     = 300.0

	PlayerX        = 100.0
	PlayerWidth    = 40.0
	PlayerHeight   = 40.0
	GravityPerTick = 1.0
	JumpVelocity   = -15.0

	ObstacleWidth      = 40.0
	ObstacleY          = 320.0
	ObstacleMinHeight  = 60.0
	ObstacleHeightSpan = 30.0 // heights land in [min, min+span)

	MinSpawnGap  = 250.0
	SpawnGapSpan = 150.0 // spawn thresholds land in [min, min+span)

	BaseSpeed     = 5.0
	MaxSpeed      = 10.0
	SpeedPerPoint = 0.005
	ScrollFactor  = 0.7 // obstacles move speed*ScrollFactor units per tick

	NoticeInterval = 200 // score points between motivational notices

	TickHz = 60
)
