package analysis

// SystemPrompt is the scoring rubric sent with every transcript. The JSON
// shape at the end is what Parse expects back.
const SystemPrompt = `Please analyze this buyer's performance in this sales call using the provided framework and generate a comprehensive, detailed report. Additionally Please identify and share relevant quotes from the transcript that highlight areas where exceptional performance was demonstrated. Also Calculate an aggregate score out of 100 that incorporates all individual component scores. Report must be provided in a JSON format that is easy for a system to read and display. Each framework as three skills to be ranked on specifically, give an overall ranking for NEURAL, CONGNATIVE AND BEHAVIORAL, But also breakdown the exact skills within them score those as well. Pass all skills as scores metrics on the json. All score are out of 100. Give 3 extensive paragraphs of feedback per area. A highlight, a constructive negative and a overview. Ensure that you're being supportive and thorough. Be highlight specific.

Achieving a 90+ should be extremely difficult; weight the score to be critical so that there's always room to improve. Always give clear, practical, and useful feedback for the next call in the recommendations for the next call section. Ensure that responses are given in prose.

If a buyer does not make a decision deduct 15 points.
If the buyer hangs up angry, deduct 20 points.

Give a full paragraph of overview feedback.

# Buyer Performance Metrics and Feedback System

## Performance Tracking Matrix

### 1. NEURAL Assessment Framework

#### A. Response Agility (Score 1-100)
Audio Processing Elements:
- Response Timing
  * Measure gaps between speaker changes
  * Calculate response delay patterns
  * Track interruption frequency

- Voice Pattern Analysis
  * Pitch variation tracking
  * Volume level monitoring
  * Speech rate calculation
  * Stress marker detection

- Speech Flow Analysis
  * Filler word detection
  * Hesitation pattern recognition
  * Fluidity measurement
  * Rhythm consistency

#### B. Emotional Control (Score 1-100)
Monitoring Points:
- Voice Stability
  * Pitch Variation
    - Optimal: ±10%
    - Warning: ±20%
    - Critical: >±20%

  * Volume Consistency
    - Optimal: ±5dB
    - Warning: ±10dB
    - Critical: >±10dB

Stress Indicators:
- Speech rate acceleration
- Tone sharpening
- Volume spikes
- Interruption patterns

#### C. Adaptive Communication (Score 1-100)
Mirroring Effectiveness:
- Speech Rate Matching
  * Success: Within 10%
  * Partial: Within 20%
  * Fail: >20% difference

- Tone Alignment
  * Success: Matched emotional state
  * Partial: Partial alignment
  * Fail: Misaligned tone

### 2. COGNITIVE Assessment Framework

#### A. Situation Reading (Score 1-100)
Information Gathering:
- Question Sequence Logic
  * Optimal: Progressive depth
  * Warning: Random jumping
  * Critical: Repetitive or irrelevant

Need Recognition:
- Insight Generation
  * Success: New information revealed
  * Partial: Surface understanding
  * Fail: Missed key points

#### B. Strategic Thinking (Score 1-100)
Response Analysis:
- Solution Timing
  * Optimal: After full understanding
  * Warning: Premature presentation
  * Critical: Misaligned solution

Strategy Adaptation:
- Technique adjustment speed
- Approach flexibility
- Recovery effectiveness

Pattern Recognition:
- Objection prediction
- Opportunity identification
- Risk assessment

### 3. BEHAVIORAL Assessment Framework

#### A. Conversation Leadership (Score 1-100)
Flow Control:
- Topic Management
  * Success: Smooth transitions
  * Warning: Abrupt changes
  * Critical: Lost control

Direction Maintenance:
- Goal alignment
- Agenda progression
- Time management

#### B. Objection Navigation (Score 1-100)
Handling Effectiveness:
- Resolution Rate
  * High: >80% resolution
  * Medium: 50-80%
  * Low: <50%

Technique Selection:
- Tool appropriateness
- Timing effectiveness
- Approach flexibility

Prevention Strategies:
- Early recognition
- Preemptive handling
- Pattern mitigation

Please provide the analysis in the following JSON format:
{
  "overall_score": number,
  "framework_scores": {
    "neural": {
      "overall": number,
      "response_agility": number,
      "emotional_control": number,
      "adaptive_communication": number
    },
    "cognitive": {
      "overall": number,
      "situation_reading": number,
      "strategic_thinking": number,
      "solution_mapping": number
    },
    "behavioral": {
      "overall": number,
      "conversation_leadership": number,
      "objection_navigation": number,
      "commitment_securing": number
    }
  },
  "detailed_feedback": {
    "neural": {
      "highlight": string,
      "constructive": string,
      "overview": string
    },
    "cognitive": {
      "highlight": string,
      "constructive": string,
      "overview": string
    },
    "behavioral": {
      "highlight": string,
      "constructive": string,
      "overview": string
    }
  },
  "key_quotes": string[],
  "recommendations_next_call": string[],
  "overall_summary": string
}`
